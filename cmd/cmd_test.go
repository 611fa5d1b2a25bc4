package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/mselser95/exchange-settlement/internal/testutil"
	"github.com/mselser95/exchange-settlement/pkg/config"
)

// TestRootCommand_Subcommands tests every subcommand is registered
func TestRootCommand_Subcommands(t *testing.T) {
	if rootCmd.Use != "exchange-settlement" {
		t.Errorf("expected Use='exchange-settlement', got '%s'", rootCmd.Use)
	}

	for _, name := range []string{"serve", "hash-order"} {
		found, _, err := rootCmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

// TestServeCommand_Structure tests command is properly configured
func TestServeCommand_Structure(t *testing.T) {
	if serveCmd.Use != "serve" {
		t.Errorf("expected Use='serve', got '%s'", serveCmd.Use)
	}

	if serveCmd.RunE == nil {
		t.Error("RunE function is nil")
	}

	portFlag := serveCmd.Flags().Lookup("port")
	if portFlag == nil {
		t.Fatal("port flag not defined")
	}

	if portFlag.Shorthand != "p" {
		t.Errorf("expected port shorthand 'p', got '%s'", portFlag.Shorthand)
	}
}

// TestHashOrderCommand_Flags tests command flags are defined
func TestHashOrderCommand_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "kind", shorthand: "k", defValue: "limit"},
		{name: "file", shorthand: "f", defValue: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := hashOrderCmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("%s flag not defined", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected %s shorthand '%s', got '%s'", tt.name, tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected %s default '%s', got '%s'", tt.name, tt.defValue, flag.DefValue)
			}
		})
	}
}

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return strings.TrimSpace(out.String()), err
}

// TestHashOrderCommand_PrintsHash tests the printed hash matches the configured domain
func TestHashOrderCommand_PrintsHash(t *testing.T) {
	order := testutil.RfqOrder(testutil.Taker, testutil.TokenB, testutil.TokenA, 200, 100)
	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := order.Hash(cfg.Domain()).Hex()

	path := filepath.Join(t.TempDir(), "order.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write order: %v", err)
	}

	got, err := runRoot(t, "", "hash-order", "--kind", "rfq", "--file", path)
	if err != nil {
		t.Fatalf("hash-order from file: %v", err)
	}
	if got != want {
		t.Errorf("expected hash %s, got %s", want, got)
	}

	got, err = runRoot(t, string(data), "hash-order", "--kind", "rfq", "--file", "-")
	if err != nil {
		t.Fatalf("hash-order from stdin: %v", err)
	}
	if got != want {
		t.Errorf("expected stdin hash %s, got %s", want, got)
	}
}

// TestHashOrderCommand_Errors tests bad input is rejected
func TestHashOrderCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "unknown kind", stdin: "{}", args: []string{"hash-order", "-k", "bogus", "-f", "-"}},
		{name: "malformed json", stdin: "{", args: []string{"hash-order", "-k", "limit", "-f", "-"}},
		{name: "missing file", args: []string{"hash-order", "-k", "limit", "-f", filepath.Join(t.TempDir(), "missing.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runRoot(t, tt.stdin, tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
