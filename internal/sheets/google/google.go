package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/log"
	ports "expensetracker/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	headerMu    sync.Mutex
	headerReady bool
}

var (
	_ ports.TransactionMirror = (*Client)(nil)
	_ ports.MirrorIndex       = (*Client)(nil)
)

type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsFile is a service account key. When empty the inline
	// GOOGLE_SERVICE_ACCOUNT_JSON variable or application default credentials are used.
	CredentialsFile string
	// OAuthClientFile and OAuthTokenFile authorize as a user instead of a
	// service account. Both must be set; they take precedence over CredentialsFile.
	OAuthClientFile string
	OAuthTokenFile  string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		opts.SheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	options := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	credentialsFile := opts.CredentialsFile

	switch inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); {
	case opts.OAuthClientFile != "" || opts.OAuthTokenFile != "":
		if opts.OAuthClientFile == "" || opts.OAuthTokenFile == "" {
			return nil, errors.New("oauth needs both a client file and a token file")
		}
		clientJSON, err := os.ReadFile(opts.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		cfg, err := OAuthConfig(clientJSON, "")
		if err != nil {
			return nil, err
		}
		tok, err := ReadToken(opts.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		options = append(options, goption.WithTokenSource(cfg.TokenSource(ctx, tok)))
		slog.InfoContext(ctx, "Using OAuth user credentials",
			log.FieldComponent, log.ComponentSheets,
			"token", opts.OAuthTokenFile)
	case credentialsFile != "":
		credentialsJSON, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		options = append(options, goption.WithCredentialsJSON(credentialsJSON))
		slog.InfoContext(ctx, "Using service account file",
			log.FieldComponent, log.ComponentSheets,
			"path", credentialsFile)
	case inline != "":
		options = append(options, goption.WithCredentialsJSON([]byte(inline)))
		slog.InfoContext(ctx, "Using inline service account credentials",
			log.FieldComponent, log.ComponentSheets)
	default:
		slog.InfoContext(ctx, "Using application default credentials",
			log.FieldComponent, log.ComponentSheets)
	}

	service, err := gsheet.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendTransaction writes one row below the existing data.
func (c *Client) AppendTransaction(ctx context.Context, row ports.MirrorRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.TransactionID <= 0 {
		return "", errors.New("mirror row needs a transaction id")
	}
	if err := c.ensureHeader(ctx); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.columns(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// HasTransaction scans the ID column for id.
func (c *Client) HasTransaction(ctx context.Context, id int64) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	return findTransactionRow(resp.Values, id) >= 0, nil
}

// ensureHeader writes the header row into an empty sheet. A failed attempt
// is retried on the next append.
func (c *Client) ensureHeader(ctx context.Context) error {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	if c.headerReady {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:F1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !hasHeader(resp.Values) {
		header := make([]any, len(ports.Header))
		for i, h := range ports.Header {
			header[i] = h
		}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		slog.InfoContext(ctx, "Mirror sheet header written",
			log.FieldComponent, log.ComponentSheets,
			"sheet", c.sheetName)
	}
	c.headerReady = true
	return nil
}

func (c *Client) columns() string {
	return fmt.Sprintf("%s!A:F", c.sheetName)
}
