package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxRemoteResponse caps how much of a conversion response is read.
const maxRemoteResponse = 50 * 1024 * 1024

// Remote sends documents to a docling-serve style conversion endpoint and
// is available only when an endpoint is configured. It handles the office
// and PDF formats a local text pass cannot.
type Remote struct {
	Endpoint string // base URL of the conversion service
	APIKey   string // optional bearer token
	Client   *http.Client
}

// remoteResponse is the JSON shape returned by the conversion endpoint.
type remoteResponse struct {
	Markdown  string            `json:"markdown"`
	PageCount int               `json:"page_count"`
	Metadata  map[string]string `json:"metadata"`
}

func (Remote) Name() string { return "remote" }

func (r Remote) Available() bool { return r.Endpoint != "" }

func (Remote) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".pptx", ".html":
		return true
	}
	return false
}

func (r Remote) Extract(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	url := strings.TrimRight(r.Endpoint, "/") + "/v1/convert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: conversion endpoint returned %s", ErrExtraction, resp.Status)
	}

	var rr remoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteResponse)).Decode(&rr); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrExtraction, err)
	}
	if rr.Markdown == "" {
		return Result{}, fmt.Errorf("%w: conversion endpoint returned no content", ErrExtraction)
	}

	return Result{
		Markdown:  rr.Markdown,
		PageCount: rr.PageCount,
		Method:    r.Name(),
		Metadata:  rr.Metadata,
	}, nil
}
