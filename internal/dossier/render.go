package dossier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"nexus-terminal-go/internal/common"
	"nexus-terminal-go/internal/models"
)

// Render writes the printable report for a snapshot
func Render(w io.Writer, snap models.DossierSnapshot) error {
	var buf bytes.Buffer

	common.FprintHeader(&buf, fmt.Sprintf("SOVEREIGN DOSSIER %s", snap.Id), common.DefaultWidth)
	fmt.Fprintf(&buf, "Captured: %s\n", snap.CapturedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Total liquidity: %s\n", snap.TotalLiquidity.StringFixed(2))

	common.FprintSection(&buf, fmt.Sprintf("Global Liquidity (%d accounts)", len(snap.Accounts)), common.DefaultWidth-2)
	for i, acct := range snap.Accounts {
		isLast := i == len(snap.Accounts)-1
		fmt.Fprintf(&buf, "%s%-30s ****%s %20s %s\n",
			common.BoxPrefix(isLast),
			common.Truncate(acct.Name, 30),
			acct.Mask,
			acct.Balance.Current.StringFixed(2),
			acct.Balance.Currency)
		fmt.Fprintf(&buf, "%s   %s / %s\n", common.BoxDetailPrefix(isLast), acct.Type, acct.Subtype)
	}

	common.FprintSection(&buf, fmt.Sprintf("Issuance Nodes (%d products)", len(snap.CardProducts)), common.DefaultWidth-2)
	if len(snap.CardProducts) == 0 {
		fmt.Fprintf(&buf, "%sNo card products provisioned\n", common.BoxPrefix(true))
	}
	for i, prod := range snap.CardProducts {
		isLast := i == len(snap.CardProducts)-1
		status := "INACTIVE"
		if prod.Active {
			status = "ACTIVE"
		}
		fmt.Fprintf(&buf, "%s%-40s %-8s %s\n", common.BoxPrefix(isLast), common.Truncate(prod.Name, 40), status, prod.Token)
	}

	common.FprintSection(&buf, fmt.Sprintf("Treasury Snapshot (%s)", snap.Ledger.Resource), common.DefaultWidth-2)
	buf.WriteString(prettyPayload(snap.Ledger.Payload))
	buf.WriteString("\n")

	common.FprintFooter(&buf, fmt.Sprintf("END OF DOSSIER %s", snap.Id), common.DefaultWidth)

	_, err := w.Write(buf.Bytes())
	return err
}

// RenderString returns the printable report as a string
func RenderString(snap models.DossierSnapshot) string {
	var sb strings.Builder
	_ = Render(&sb, snap)
	return sb.String()
}

func prettyPayload(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "null"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return string(payload)
	}
	return out.String()
}
