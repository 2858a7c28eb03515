package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProviderProfileMissingUsesDefaults(t *testing.T) {
	profile, err := LoadProviderProfile(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("LoadProviderProfile: %v", err)
	}
	if profile.Link.ClientName != "Nexus Terminal" {
		t.Errorf("ClientName = %q", profile.Link.ClientName)
	}
	if profile.CardProduct.ExpirationYears != 5 || profile.CardProduct.PaymentInstrument != "VIRTUAL_PAN" {
		t.Errorf("CardProduct = %+v", profile.CardProduct)
	}
}

func TestLoadProviderProfileMissingRequired(t *testing.T) {
	if _, err := LoadProviderProfile(filepath.Join(t.TempDir(), "absent.yaml"), true); err == nil {
		t.Fatal("expected error for required missing profile")
	}
}

func TestLoadProviderProfileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `
link:
  client_name: Ops Console
  country_codes: [US, CA]
card_product:
  name: Ops Virtual
  expiration_years: 3
  activate_upon_issue: false
cardholder:
  first_name: Jane
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	profile, err := LoadProviderProfile(path, true)
	if err != nil {
		t.Fatalf("LoadProviderProfile: %v", err)
	}
	if profile.Link.ClientName != "Ops Console" || len(profile.Link.CountryCodes) != 2 {
		t.Errorf("Link = %+v", profile.Link)
	}
	if profile.Link.Language != "en" {
		t.Errorf("Language default lost: %q", profile.Link.Language)
	}
	if profile.CardProduct.ExpirationYears != 3 || *profile.CardProduct.ActivateUponIssue {
		t.Errorf("CardProduct = %+v", profile.CardProduct)
	}
	if profile.Cardholder.FirstName != "Jane" || profile.Cardholder.LastName != "Operator" {
		t.Errorf("Cardholder = %+v", profile.Cardholder)
	}
}

func TestLoadProviderProfileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("card_product:\n  expiration_years: -1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadProviderProfile(path, true); err == nil {
		t.Fatal("expected error for negative expiration")
	}

	if err := os.WriteFile(path, []byte("link: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadProviderProfile(path, true); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormatHelpers(t *testing.T) {
	var buf bytes.Buffer
	FprintHeader(&buf, "TITLE", 10)
	if !strings.Contains(buf.String(), "TITLE\n==========\n") {
		t.Errorf("header = %q", buf.String())
	}

	if BoxPrefix(true) != "└  " || BoxPrefix(false) != "│  " {
		t.Error("unexpected box prefixes")
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abc", 6); got != "abc" {
		t.Errorf("Truncate short = %q", got)
	}
}
