// Package medfind provides a Go client for the medfind hybrid product
// search API.
//
// The service interprets free-text product queries, retrieves candidates
// from a local similarity corpus and falls back to a live marketplace
// search when local confidence is low. The client wraps the HTTP API:
//
//	client := medfind.New("http://localhost:8080", medfind.WithAPIKey("secret"))
//	res, err := client.Search(ctx, "blood pressure monitor under 10000 PKR",
//	    medfind.WithLimit(10),
//	)
//	for _, item := range res.Results {
//	    fmt.Println(item.Title, item.URL)
//	}
//
// Live bypasses interpretation and local retrieval and queries the
// marketplace directly:
//
//	res, err := client.Live(ctx, "nebulizer machine")
package medfind
