// Package htmlscraper builds crawlers that fetch HTML pages through a
// netsession.Session and parse them with goquery.
//
// Bodies are decoded to UTF-8 using the charset from the Content-Type header.
// Pages that cannot be decoded fail with crawler.ErrInvalidData.
package htmlscraper
