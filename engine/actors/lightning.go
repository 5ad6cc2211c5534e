package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/fiatjaf/go-lnurl"
	decodepay "github.com/nbd-wtf/ln-decodepay"
	"nostrdesk/engine/library"
)

// DecodeInvoice decodes a BOLT11 string. decodepay slices up to the first
// digit unchecked, so strings without one after the prefix are refused first.
func DecodeInvoice(invoice string) (b decodepay.Bolt11, e error) {
	invoice = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(invoice)), "lightning:")
	if strings.IndexAny(invoice, "0123456789") < 2 {
		return b, fmt.Errorf("not a bolt11 invoice")
	}
	defer func() {
		if r := recover(); r != nil {
			library.LogCLI(fmt.Sprintf("decoding invoice: %v", r), 2)
			b, e = decodepay.Bolt11{}, fmt.Errorf("not a bolt11 invoice: %v", r)
		}
	}()
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		return b, err
	}
	return bolt11, e
}

// LightningAddress normalises a lud16 value such as "Alice <alice@example.com>".
func LightningAddress(lud16 string) (string, bool) {
	if len(lud16) == 0 {
		return "", false
	}
	addr, err := mail.ParseAddress(lud16)
	if err != nil {
		return "", false
	}
	return strings.Trim(addr.Address, "<>"), true
}

type LNServicePayResponse struct {
	Callback    string `json:"callback"`
	MaxSendable int64  `json:"maxSendable"`
	MinSendable int64  `json:"minSendable"`
	Metadata    string `json:"metadata"`
	Tag         string `json:"tag"`
	Status      string `json:"status,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type LNServiceInvoice struct {
	Pr     string     `json:"pr"`
	Routes []struct{} `json:"routes"`
	Status string     `json:"status,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// GetInvoice asks the LNURL-pay service behind a lightning address for an
// invoice of amount sats and checks the invoice it returns.
func GetInvoice(ctx context.Context, client *http.Client, address string, amount int64, comment string) (string, error) {
	lud06, err := Lud16ToLud06(address)
	if err != nil {
		return "", err
	}
	service, err := GetLNServiceResponse(ctx, client, lud06)
	if err != nil {
		return "", err
	}
	msats := amount * 1000
	if msats < service.MinSendable || (service.MaxSendable > 0 && msats > service.MaxSendable) {
		return "", fmt.Errorf("%d sats is outside what %s accepts (%d-%d msats)", amount, address, service.MinSendable, service.MaxSendable)
	}
	callback, err := url.Parse(service.Callback)
	if err != nil {
		return "", err
	}
	q := callback.Query()
	q.Set("amount", strconv.FormatInt(msats, 10))
	if c := strings.TrimSpace(comment); c != "" {
		q.Set("comment", c)
	}
	callback.RawQuery = q.Encode()
	var resInvoice LNServiceInvoice
	if err := getJSON(ctx, client, callback.String(), &resInvoice); err != nil {
		return "", err
	}
	if strings.EqualFold(resInvoice.Status, "ERROR") {
		return "", fmt.Errorf("lnurl callback: %s", resInvoice.Reason)
	}
	bolt11, err := DecodeInvoice(resInvoice.Pr)
	if err != nil {
		return "", fmt.Errorf("lnurl callback returned an unreadable invoice: %w", err)
	}
	if bolt11.MSatoshi != msats {
		return "", fmt.Errorf("amount on invoice is %d msats but %d msats was requested", bolt11.MSatoshi, msats)
	}
	return resInvoice.Pr, nil
}

// GetLNServiceResponse resolves an LNURL to its pay service parameters.
func GetLNServiceResponse(ctx context.Context, client *http.Client, lnurla string) (l LNServicePayResponse, e error) {
	decodedLnUrl, err := lnurl.LNURLDecode(lnurla)
	if err != nil {
		return l, err
	}
	if err = getJSON(ctx, client, decodedLnUrl, &l); err != nil {
		return l, err
	}
	if strings.EqualFold(l.Status, "ERROR") {
		return l, fmt.Errorf("lnurl service: %s", l.Reason)
	}
	if l.Callback == "" {
		return l, fmt.Errorf("lnurl service returned no callback")
	}
	return l, nil
}

func getJSON(ctx context.Context, client *http.Client, u string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return json.Unmarshal(body, into)
}

func lud16ToUrl(address string) (s string, e error) {
	split := strings.Split(address, "@")
	if len(split) != 2 || split[0] == "" || split[1] == "" {
		return "", fmt.Errorf("invalid lightning address %q", address)
	}
	return "https://" + strings.Trim(split[1], "<>") + "/.well-known/lnurlp/" + strings.Trim(split[0], "<>"), e
}

func Lud16ToLud06(lud16 string) (string, error) {
	u, err := lud16ToUrl(lud16)
	if err != nil {
		return "", err
	}
	return lnurl.Encode(u)
}
