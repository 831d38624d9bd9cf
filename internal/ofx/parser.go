// Package ofx reads OFX/QFX bank and credit card statements and records
// their lines as ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// An SGML opening tag missing its closing bracket at the end of a line.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Line is one statement transaction.
type Line struct {
	Posted    time.Time
	FITID     string
	AccountID string
	Name      string
	Merchant  string
	Memo      string
	TrnType   string // DEBIT, CREDIT, CHECK, ATM, ...
	CheckNum  string
	Amount    float64 // signed: negative is money out
}

// Text is what rules are matched against.
func (l Line) Text() string {
	return strings.TrimSpace(strings.Join([]string{l.Merchant, l.Memo}, " "))
}

// ExternalID identifies the line across imports of overlapping statements.
func (l Line) ExternalID() string {
	return l.AccountID + ":" + l.FITID
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file and returns its statement lines.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]Line, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var (
		lines              []Line
		bankStmts, ccStmts int
	)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			lines = append(lines, p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			lines = append(lines, p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(lines),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return lines, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID string) []Line {
	if list == nil {
		return nil
	}
	lines := make([]Line, 0, len(list.Transactions))
	for _, tx := range list.Transactions {
		lines = append(lines, p.convertTransaction(tx, accountID))
	}
	return lines
}

func (p *Parser) convertTransaction(tx ofxgo.Transaction, accountID string) Line {
	amount, _ := tx.TrnAmt.Float64()
	return Line{
		FITID:     string(tx.FiTID),
		AccountID: accountID,
		Posted:    tx.DtPosted.Time,
		Name:      string(tx.Name),
		Merchant:  p.extractMerchantName(tx),
		Memo:      strings.TrimSpace(string(tx.Memo)),
		TrnType:   fmt.Sprintf("%v", tx.TrnType),
		CheckNum:  string(tx.CheckNum),
		Amount:    amount,
	}
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " date prefix
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	default:
		return false
	}
}

// GetAccounts extracts the unique account IDs of the file, sorted.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			seen[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			seen[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(seen))
	for acct := range seen {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
