package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// ctxprobe is a small liveness/readiness probe for a running contextdb
// instance, usable as a container healthcheck command. It exits 0 when all
// requested endpoints return 200, nonzero otherwise.
func main() {
	base := flag.String("base", "http://127.0.0.1:8080", "base URL of the contextdb instance")
	paths := flag.String("paths", "/healthz,/readyz", "comma-separated endpoints to check")
	timeout := flag.Duration("timeout", 2*time.Second, "per-request timeout")
	quiet := flag.Bool("quiet", false, "suppress per-endpoint output")
	flag.Parse()

	c := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	failed := false
	for _, p := range strings.Split(*paths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		url := strings.TrimRight(*base, "/") + p
		status, body, err := probe(c, url, *timeout)
		if err != nil {
			failed = true
			if !*quiet {
				fmt.Printf("%-10s FAIL (%v)\n", p, err)
			}
			continue
		}
		if status != fasthttp.StatusOK {
			failed = true
		}
		if !*quiet {
			fmt.Printf("%-10s %d %s\n", p, status, body)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func probe(c *fasthttp.Client, url string, timeout time.Duration) (int, string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.DoTimeout(req, resp, timeout); err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), string(resp.Body()), nil
}
