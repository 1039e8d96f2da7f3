// Package google writes ledger rows to a Google Sheet with a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"taschengeld/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	// Location formats the booking time.
	Location *time.Location

	// Extra client options, used by tests to point at a fake endpoint.
	Options []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
}

var _ sheets.LedgerWriter = (*Client)(nil)

// New creates a Sheets client authenticated with the configured service
// account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Taschengeld"
	}

	opts := cfg.Options
	if len(opts) == 0 {
		credentialsJSON, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, loc: loc}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendRow appends row below the last filled row of the sheet and returns
// the updated range.
func (c *Client) AppendRow(ctx context.Context, row sheets.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values(c.loc)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// EnsureHeader writes the column titles when the first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:F1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of sheet %s: %w", c.sheetName, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{sheets.Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of sheet %s: %w", c.sheetName, err)
	}
	return nil
}
