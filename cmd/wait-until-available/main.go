package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Waits until the contacts service reports that it is healthy, which includes a working database
// connection.
//
// Usage example on the command line:
// > go run main.go -url=http://localhost:8080/healthz -timeout=2m
func main() {
	url := flag.String("url", "http://localhost:8080/healthz", "the health endpoint of the service")
	timeout := flag.Duration("timeout", 0, "give up after this duration, 0 waits forever")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	start := time.Now()
	totalWaitTime := 0
	for {
		res, err := client.Get(*url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				fmt.Println(res.Status)
				break
			}
			fmt.Println(res.Status)
		} else {
			fmt.Println(err)
		}
		if *timeout > 0 && time.Since(start) > *timeout {
			fmt.Println("service not available after", *timeout)
			os.Exit(1)
		}
		totalWaitTime += 5
		fmt.Printf("Waiting %d seconds", totalWaitTime)
		fmt.Println()
		time.Sleep(5 * time.Second)
	}
}
