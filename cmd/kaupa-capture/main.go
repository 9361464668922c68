// Kaupa capture agent.
//
// Usage:
//   kaupa-capture run --url https://vendor.example/p/123 [--publish http://api:8080]
//   kaupa-capture normalize --price "€12,50" --pack "case of 12"
//   kaupa-capture extract --file body.json
//
// The run command speaks the capture transport as NDJSON on stdin/stdout:
// NETWORK_JSON and DOM_SNAPSHOT messages in, exactly one CAPTURE_RESULT out
// per BEGIN_CAPTURE.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/gsindri/kaupa-skil-sub003/internal/capture"
	pkgapi "github.com/gsindri/kaupa-skil-sub003/pkg/api"
	"github.com/gsindri/kaupa-skil-sub003/pkg/platform"
)

var version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "kaupa-capture",
		Usage:   "Price capture agent: extract and normalize vendor prices",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			normalizeCommand(),
			extractCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// RUN COMMAND
// =============================================================================

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one capture session over the NDJSON transport",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "Page URL the capture is for",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "grace",
				Value: capture.DefaultGracePeriod,
				Usage: "DOM fallback grace period",
			},
			&cli.StringFlag{
				Name:    "publish",
				Usage:   "API server base URL to publish the observation to",
				EnvVars: []string{"KAUPA_API_URL"},
			},
		},
		Action: func(c *cli.Context) error {
			return runSession(c.String("url"), c.Duration("grace"), c.String("publish"))
		},
	}
}

func runSession(url string, grace time.Duration, publish string) error {
	logger := platform.InitLogger()

	var htmlMu sync.Mutex
	var latestHTML string

	domExtract := func() *pkgapi.NormalizedPriceObservation {
		htmlMu.Lock()
		html := latestHTML
		htmlMu.Unlock()
		if html == "" {
			return nil
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			logger.Warn().Err(err).Msg("DOM snapshot parse failed")
			return nil
		}
		raw := capture.ExtractFromDOM(doc, capture.DefaultSelectors())
		if raw == nil {
			return nil
		}
		obs := capture.Normalize(*raw, pkgapi.SourceDOM, url)
		return &obs
	}

	out := json.NewEncoder(os.Stdout)
	done := make(chan struct{})
	report := func(obs *pkgapi.NormalizedPriceObservation) {
		if err := out.Encode(capture.NewResultMessage(obs)); err != nil {
			logger.Error().Err(err).Msg("result write failed")
		}
		if publish != "" && obs != nil {
			publishObservation(publish, obs)
		}
		close(done)
	}

	session := capture.NewSession(capture.SessionConfig{
		URL:    url,
		Grace:  grace,
		DOM:    domExtract,
		Report: report,
		Logger: logger,
	})

	began := false
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg capture.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logger.Warn().Err(err).Msg("unparseable transport message")
			continue
		}

		switch msg.Type {
		case capture.MsgBeginCapture:
			began = true
			session.BeginCapture()
		case capture.MsgNetworkJSON:
			if !msg.KPS {
				continue // unrelated page messaging on the shared channel
			}
			session.ObserveBody(msg.Body)
		case capture.MsgDOMSnapshot:
			htmlMu.Lock()
			latestHTML = msg.HTML
			htmlMu.Unlock()
		}

		if session.State() == capture.StateSent {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("transport read failed: %w", err)
	}

	// Input ended mid-session: let the grace timer run out the DOM path.
	if began && session.State() != capture.StateSent {
		select {
		case <-done:
		case <-time.After(grace + time.Second):
			logger.Warn().Msg("capture session never reported")
		}
	}
	return nil
}

func publishObservation(base string, obs *pkgapi.NormalizedPriceObservation) {
	payload, err := json.Marshal(obs)
	if err != nil {
		log.Warn().Err(err).Msg("observation marshal failed")
		return
	}
	client := platform.NewHTTPClient(2, 10*time.Second, log.Logger)
	resp, err := client.PostJSON(strings.TrimRight(base, "/")+"/api/v1/observations", payload)
	if err != nil {
		log.Warn().Err(err).Msg("observation publish failed")
		return
	}
	resp.Body.Close()
}

// =============================================================================
// NORMALIZE COMMAND
// =============================================================================

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "Normalize a raw price text into a canonical observation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "price",
				Usage:    "Raw price text, e.g. '€12,50 incl. VAT'",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "currency",
				Usage: "Explicit currency code, overrides symbol detection",
			},
			&cli.StringFlag{
				Name:  "pack",
				Usage: "Pack descriptor text, e.g. 'case of 12'",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Source URL recorded on the observation",
			},
		},
		Action: func(c *cli.Context) error {
			obs := capture.Normalize(pkgapi.RawPriceObservation{
				PriceText:    c.String("price"),
				CurrencyText: c.String("currency"),
				PackText:     c.String("pack"),
			}, pkgapi.SourceDOM, c.String("url"))
			return json.NewEncoder(os.Stdout).Encode(obs)
		},
	}
}

// =============================================================================
// EXTRACT COMMAND
// =============================================================================

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract a price candidate from a JSON payload",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Payload file (defaults to stdin)",
			},
		},
		Action: func(c *cli.Context) error {
			var body []byte
			var err error
			if file := c.String("file"); file != "" {
				body, err = os.ReadFile(file)
			} else {
				body, err = readAllStdin()
			}
			if err != nil {
				return err
			}
			np := capture.ExtractNetworkPrice(body)
			if np == nil {
				fmt.Fprintln(os.Stderr, "no price-like field found")
				os.Exit(1)
			}
			return json.NewEncoder(os.Stdout).Encode(np)
		},
	}
}

func readAllStdin() ([]byte, error) {
	var buf []byte
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		buf = append(buf, scanner.Bytes()...)
		buf = append(buf, '\n')
	}
	return buf, scanner.Err()
}
