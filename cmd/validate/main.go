// Package main provides a CLI tool for validating dashboard server endpoints.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	method      string
	contentType string
	contains    []string
}

// sampleCSV is uploaded before probing so every view has data to render
const sampleCSV = "Date,Category,Revenue,Expenses\n" +
	"2023-01-05,A,100,50\n" +
	"2023-01-20,B,50,10\n" +
	"2023-02-03,A,200,70\n"

var endpoints = []endpoint{
	// Main page
	{path: "/dashboard", method: "GET", contentType: "text/html", contains: []string{"Dashboard", `id="selection"`}},

	// Dashboard partials
	{path: "/dashboard/categories", method: "GET", contentType: "text/html", contains: []string{`value="A"`, `value="B"`}},
	{path: "/dashboard/kpis", method: "GET", contentType: "text/html", contains: []string{"Revenue", "350.00"}},
	{path: "/dashboard/kpis?category=A", method: "GET", contentType: "text/html", contains: []string{"300.00"}},
	{path: "/dashboard/charts/data/timeseries", method: "GET", contentType: "application/json", contains: []string{"Revenue and expenses by Month"}},
	{path: "/dashboard/charts/data/timeseries?period=quarter", method: "GET", contentType: "application/json", contains: []string{"2023-03-31"}},
	{path: "/dashboard/charts/data/category", method: "GET", contentType: "application/json", contains: []string{`"pie"`}},
	{path: "/dashboard/charts/data/profit", method: "GET", contentType: "application/json", contains: []string{"Profit distribution"}},

	// Table
	{path: "/dashboard/table", method: "GET", contentType: "text/html", contains: []string{"<table>"}},
	{path: "/dashboard/table/export?format=csv", method: "GET", contentType: "text/csv", contains: []string{"Date,Category,Revenue,Expenses"}},
	{path: "/dashboard/table/export?format=xlsx", method: "GET", contentType: "spreadsheetml", contains: nil},

	// API
	{path: "/api/dashboard", method: "GET", contentType: "application/json", contains: []string{`"kpi"`}},
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	flag.Parse()

	// The jar keeps the session cookie so the probes see the uploaded dataset
	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
		Jar:     jar,
	}

	fmt.Printf("Validating server at %s\n", *url)

	if err := uploadSample(client, *url); err != nil {
		fmt.Printf("FAIL POST /dashboard/upload\n")
		fmt.Printf("     Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	var passed, failed int
	var results []result

	for _, ep := range endpoints {
		r := validateEndpoint(client, *url, ep, *verbose)
		results = append(results, r)

		if r.err != nil {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Error: %v\n", r.err)
		} else if r.status != http.StatusOK {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Status: %d (expected 200)\n", r.status)
		} else {
			passed++
			if *verbose {
				fmt.Printf("PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

// uploadSample posts sampleCSV and checks the server announced the new dataset
func uploadSample(client *http.Client, baseURL string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "validate.csv")
	if err != nil {
		return err
	}
	if _, err := part.Write([]byte(sampleCSV)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/dashboard/upload", mw.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d (expected 200)", resp.StatusCode)
	}
	if resp.Header.Get("HX-Trigger") != "dataset-changed" {
		return fmt.Errorf("upload was not accepted")
	}
	return nil
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint, verbose bool) result {
	start := time.Now()

	req, err := http.NewRequest(ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	duration := time.Since(start)

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: duration,
		body:     string(body),
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js interface{}
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
