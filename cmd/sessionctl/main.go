// Command sessionctl is an operator helper for manual end-to-end checks:
// it signs webhook bodies the way the provider does, mints internal tokens
// for PATCH /api/verify-payment, and can replay a signed webhook.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/infra/api/apiv1"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/infra/security"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: sessionctl [flags] <command>

commands:
  sign   print the signature of -body
  token  print an internal bearer token
  send   sign -body and POST it to -url

flags:
`)
	flag.PrintDefaults()
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	bodyPath := flag.String("body", "", "webhook body file (- for stdin)")
	target := flag.String("url", "http://localhost:8080/api/square", "webhook endpoint for send")
	subject := flag.String("sub", "sessionctl", "token subject")
	ttl := flag.Duration("ttl", 15*time.Minute, "token lifetime")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	secret := cfg.Payment.Active().WebhookSecret
	verifier := security.NewSignatureVerifier()

	switch flag.Arg(0) {
	case "sign":
		body := readBody(*bodyPath)
		if secret == "" {
			log.Fatalf("no webhook secret configured for %s", cfg.Payment.Environment)
		}
		fmt.Println(verifier.Sign(body, secret))

	case "token":
		logger := logging.New(cfg.Log, true)
		auth := apiv1.NewInternalAuth(cfg.InternalAuth.JWTSecret, cfg.InternalAuth.Issuer, cfg.Payment.IsProduction(), logger)
		tok, err := auth.Mint(*subject, *ttl)
		if err != nil {
			log.Fatalf("mint: %v", err)
		}
		fmt.Println(tok)

	case "send":
		body := readBody(*bodyPath)
		req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(body))
		if err != nil {
			log.Fatalf("request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(cfg.Payment.SignatureHeader, verifier.Sign(body, secret))
		} else {
			log.Printf("no webhook secret for %s; sending unsigned", cfg.Payment.Environment)
		}
		client := &http.Client{Timeout: 15 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("send: %v", err)
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		fmt.Printf("%d %s\n", resp.StatusCode, bytes.TrimSpace(out))
		if resp.StatusCode >= 300 {
			os.Exit(1)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func readBody(path string) []byte {
	var (
		b   []byte
		err error
	)
	switch path {
	case "":
		log.Fatalf("-body is required")
	case "-":
		b, err = io.ReadAll(os.Stdin)
	default:
		b, err = os.ReadFile(path)
	}
	if err != nil {
		log.Fatalf("read body: %v", err)
	}
	return b
}
