// Package ytscrape harvests video links and contact details from YouTube
// channels by driving a real Chrome session.
//
// # Overview
//
// A scrape has two parts per channel:
//
//   - Links: scroll the channel's videos tab until the page height stops
//     growing, then collect every video link, deduplicated by video ID.
//   - Details: sign in with a Google account, open the channel's About panel,
//     reveal the business email behind its reCAPTCHA and read the location.
//
// The ytscrape command (package cli) runs either part, or both, over a list
// of channels and stores what it found.
//
// # Configuration
//
// Settings load from three sources:
//
//  1. Environment variables (highest priority)
//  2. Config file (ytscrape.json or ~/.config/ytscrape/ytscrape.json)
//  3. Default values (lowest priority)
//
// Environment variables include:
//
//   - YTSCRAPE_CHANNELS: Comma-separated channels to scrape
//   - YTSCRAPE_OUTPUT_DIR: Directory for per-channel link files
//   - YTSCRAPE_HEADLESS: Run Chrome without a window (true/false)
//   - YTSCRAPE_CONCURRENCY: Number of parallel browser sessions
//   - YTSCRAPE_QUIESCENCE_WINDOW: How long the page must stop growing
//   - YTSCRAPE_MAX_ATTEMPTS: Scroll cycle ceiling
//   - YTSCRAPE_LOG_LEVEL: debug, info, warn or error
//
// Credentials never live in the config file. They are read from
// YTSCRAPE_LOGIN_EMAIL, YTSCRAPE_LOGIN_PASSWORD and YTSCRAPE_CAPTCHA_API_KEY,
// from files named by the matching *_FILE variables, or from a .env file.
//
// # Error Handling
//
// Checking for sentinel errors:
//
//	if errors.Is(err, ytscrape.ErrSessionTerminated) {
//		fmt.Println("Browser went away")
//	}
//
// Extracting wrapped error details:
//
//	var scrapeErr *ytscrape.ScrapeError
//	if errors.As(err, &scrapeErr) {
//		fmt.Printf("%s failed at %s: %v\n", scrapeErr.Channel, scrapeErr.Stage, scrapeErr.Err)
//	}
//
// # Packages
//
//   - browser: Chrome session facade with classified errors
//   - harvest: Stable-scroll link harvester
//   - youtube: Channel parsing, login, details extraction and the per-channel script
//   - captcha: reCAPTCHA solving through 2Captcha
//   - batch: Bounded pool of sessions over many channels
//   - storage: JSON and SQLite result stores, per-channel link files
//   - secrets: Credential lookup outside the config file
//   - config: Configuration management
//
// # Dependencies
//
// ytscrape needs Chrome or Chromium installed. Set chrome_path in the config
// file when it is not on the default search path.
package ytscrape
