package models

import "time"

// Config represents the application configuration
type Config struct {
	Server         ServerConfig
	Gateway        GatewayConfig
	Activity       ActivityConfig
	ProfileFile    string
	ProfileFileSet bool
}

// ServerConfig holds control API settings
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// GatewayConfig holds outbound request settings
type GatewayConfig struct {
	RelayURL              string
	RelayEnabled          bool
	RequestTimeout        time.Duration // zero means no timeout
	PlaidURLTemplate      string        // "{environment}" is replaced with the credential environment
	MarqetaBaseURL        string
	ModernTreasuryBaseURL string
}

// ActivityConfig holds activity log settings
type ActivityConfig struct {
	Capacity int
}

// ProviderProfile tunes the payloads sent to providers.
// Loaded from YAML; zero values fall back to built-in defaults.
type ProviderProfile struct {
	Link        LinkProfile        `yaml:"link"`
	CardProduct CardProductProfile `yaml:"card_product"`
	Cardholder  CardholderProfile  `yaml:"cardholder"`
	Sandbox     SandboxProfile     `yaml:"sandbox"`
}

// LinkProfile shapes the link-token request
type LinkProfile struct {
	ClientName   string   `yaml:"client_name"`
	Products     []string `yaml:"products"`
	CountryCodes []string `yaml:"country_codes"`
	Language     string   `yaml:"language"`
}

// CardProductProfile is the configuration for a card product created on demand
type CardProductProfile struct {
	Name              string `yaml:"name"`
	PaymentInstrument string `yaml:"payment_instrument"`
	ExpirationYears   int    `yaml:"expiration_years"`
	ActivateUponIssue *bool  `yaml:"activate_upon_issue"`
}

// CardholderProfile names the issuer user created for each minted card
type CardholderProfile struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// SandboxProfile drives the headless link widget
type SandboxProfile struct {
	InstitutionId   string   `yaml:"institution_id"`
	InitialProducts []string `yaml:"initial_products"`
}

// DefaultProviderProfile returns the payload settings used when no profile file is present
func DefaultProviderProfile() ProviderProfile {
	activate := true
	return ProviderProfile{
		Link: LinkProfile{
			ClientName:   "Nexus Terminal",
			Products:     []string{"auth", "transactions"},
			CountryCodes: []string{"US"},
			Language:     "en",
		},
		CardProduct: CardProductProfile{
			Name:              "Nexus Elite V1",
			PaymentInstrument: "VIRTUAL_PAN",
			ExpirationYears:   5,
			ActivateUponIssue: &activate,
		},
		Cardholder: CardholderProfile{
			FirstName: "Nexus",
			LastName:  "Operator",
		},
		Sandbox: SandboxProfile{
			InstitutionId:   "ins_109508",
			InitialProducts: []string{"auth", "transactions"},
		},
	}
}

// WithDefaults fills every zero field from DefaultProviderProfile
func (p ProviderProfile) WithDefaults() ProviderProfile {
	d := DefaultProviderProfile()

	if p.Link.ClientName == "" {
		p.Link.ClientName = d.Link.ClientName
	}
	if len(p.Link.Products) == 0 {
		p.Link.Products = d.Link.Products
	}
	if len(p.Link.CountryCodes) == 0 {
		p.Link.CountryCodes = d.Link.CountryCodes
	}
	if p.Link.Language == "" {
		p.Link.Language = d.Link.Language
	}

	if p.CardProduct.Name == "" {
		p.CardProduct.Name = d.CardProduct.Name
	}
	if p.CardProduct.PaymentInstrument == "" {
		p.CardProduct.PaymentInstrument = d.CardProduct.PaymentInstrument
	}
	if p.CardProduct.ExpirationYears <= 0 {
		p.CardProduct.ExpirationYears = d.CardProduct.ExpirationYears
	}
	if p.CardProduct.ActivateUponIssue == nil {
		p.CardProduct.ActivateUponIssue = d.CardProduct.ActivateUponIssue
	}

	if p.Cardholder.FirstName == "" {
		p.Cardholder.FirstName = d.Cardholder.FirstName
	}
	if p.Cardholder.LastName == "" {
		p.Cardholder.LastName = d.Cardholder.LastName
	}

	if p.Sandbox.InstitutionId == "" {
		p.Sandbox.InstitutionId = d.Sandbox.InstitutionId
	}
	if len(p.Sandbox.InitialProducts) == 0 {
		p.Sandbox.InitialProducts = d.Sandbox.InitialProducts
	}
	return p
}
