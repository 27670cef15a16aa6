package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/spf13/pflag"
)

var version = "0.1.0-dev"

const usage = "usage: loqa-tillctl [--addr URL] <start|stop|print|load|status|version>"

func main() {
	flags := cli.NewFlagSet("loqa-tillctl", cli.ExitOnError)
	addr := flags.StringP("addr", "a", envOr("LOQA_TILL_ADDR", "http://127.0.0.1:8050"), "Till HTTP address")
	file := flags.StringP("file", "f", "", "Price list to upload (load)")
	timeout := flags.Duration("timeout", 30*time.Second, "Request timeout")
	flags.SetInterspersed(true)
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	c := &client{base: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: *timeout}}
	var err error
	switch args[0] {
	case "start":
		err = c.post("/api/listen/start")
	case "stop":
		err = c.post("/api/listen/stop")
	case "print":
		err = c.post("/api/bill/print")
	case "load":
		if *file == "" {
			fmt.Fprintln(os.Stderr, "load requires --file")
			os.Exit(2)
		}
		err = c.upload("/api/catalog", *file)
	case "status":
		err = c.get("/api/snapshot")
	case "version":
		fmt.Println(version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", args[0], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

func (c *client) post(path string) error {
	resp, err := c.http.Post(c.base+path, "application/json", nil)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) get(path string) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) upload(path, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := c.http.Post(c.base+path, mw.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if json.Indent(&out, data, "", "  ") != nil {
		out.Reset()
		out.Write(data)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(out.String()))
	}
	fmt.Println(out.String())
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
