// Package main provides surfer-headless, a small runner that opens one
// managed window, loads a page and prints the text of every element matching
// a CSS selector. It is handy for checking driver configuration and selectors
// from a shell or a CI job.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/surfer/pkg/config"
	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/driver/browser"
	"github.com/entrhq/surfer/pkg/driver/static"
	"github.com/entrhq/surfer/pkg/logging"
	"github.com/entrhq/surfer/pkg/surfer"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Driver      string
	URL         string
	Selector    string
	Session     string
	Keep        bool
	Retries     int
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("Surfer Headless v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		log.Printf("Run failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to a YAML driver configuration file")
	flag.StringVar(&cliConfig.Driver, "driver", "", "Driver kind: chromium, firefox, webkit, remote or static")
	flag.StringVar(&cliConfig.URL, "url", "", "Page to load (required)")
	flag.StringVar(&cliConfig.Selector, "selector", "body", "CSS selector to print")
	flag.StringVar(&cliConfig.Session, "session", "", "Session id; empty uses an anonymous session")
	flag.BoolVar(&cliConfig.Keep, "keep", false, "Keep named sessions after the window")
	flag.IntVar(&cliConfig.Retries, "retries", surfer.DefaultMaxRetries, "Navigation retries after transient failures")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 2*time.Minute, "Overall timeout")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Surfer Headless - scripted page inspection\n\n")
		fmt.Fprintf(os.Stderr, "Usage: surfer-headless [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Print every link on a page without a browser\n")
		fmt.Fprintf(os.Stderr, "  surfer-headless -driver static -url https://example.com -selector a\n\n")
		fmt.Fprintf(os.Stderr, "  # Use a remote browser configured in YAML\n")
		fmt.Fprintf(os.Stderr, "  surfer-headless -config surfer.yaml -url https://example.com -selector h1\n\n")
	}

	flag.Parse()
	return cliConfig
}

// run executes one managed window
func run(ctx context.Context, cliConfig *CLIConfig) error {
	if cliConfig.URL == "" {
		return fmt.Errorf("url is required")
	}

	logger, err := logging.NewLogger("surfer-headless")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()
	config.SetLogger(logger.With("config"))

	if initErr := config.Initialize(""); initErr != nil {
		return fmt.Errorf("failed to initialize configuration: %w", initErr)
	}
	if cliConfig.ConfigFile != "" {
		if cfgErr := config.ConfigureWith(cliConfig.ConfigFile); cfgErr != nil {
			return fmt.Errorf("failed to apply %s: %w", cliConfig.ConfigFile, cfgErr)
		}
	}
	if cliConfig.Driver != "" {
		if cfgErr := config.Configure(map[string]interface{}{config.KeyDriver: cliConfig.Driver}); cfgErr != nil {
			return fmt.Errorf("invalid driver: %w", cfgErr)
		}
	}

	section := config.GetDriver()
	if validationErr := section.Validate(); validationErr != nil {
		return fmt.Errorf("invalid configuration: %w", validationErr)
	}
	logger.Infof("driver settings: %s", section)

	allow, err := surfer.NewAllowlist(section.GetAllowedURLs())
	if err != nil {
		return err
	}

	browsers := browser.NewLauncher(logger.With("browser"))
	defer func() {
		if stopErr := browsers.Stop(); stopErr != nil {
			logger.Warnf("failed to stop playwright: %v", stopErr)
		}
	}()

	launcher := driver.Mux{
		driver.KindChromium: browsers,
		driver.KindFirefox:  browsers,
		driver.KindWebKit:   browsers,
		driver.KindRemote:   browsers,
		driver.KindStatic:   &static.Launcher{},
	}

	scope := surfer.New(launcher, section.Settings(),
		surfer.WithLogger(logger.With("surfer")),
		surfer.WithAllowlist(allow),
	)

	if cliConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliConfig.Timeout)
		defer cancel()
	}

	opts := surfer.ManagedOptions{KeepSessions: cliConfig.Keep}
	return scope.Managed(ctx, opts, func(ctx context.Context) error {
		return scope.WithSession(ctx, cliConfig.Session, func(s *surfer.Session) error {
			s.SetMaxRetries(cliConfig.Retries)

			log.Printf("Loading %s", cliConfig.URL)
			if err := s.Navigate(ctx, cliConfig.URL, nil); err != nil {
				return err
			}

			matches, err := s.Search(ctx, driver.CSS(cliConfig.Selector))
			if err != nil {
				return err
			}
			texts, err := matches.TextAll()
			if err != nil {
				return err
			}

			log.Printf("%d elements match %q", len(texts), cliConfig.Selector)
			for _, text := range texts {
				fmt.Println(text)
			}
			return nil
		})
	})
}
