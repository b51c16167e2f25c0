package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MinProcessNoteLength is the minimum length of a seller-written process note.
const MinProcessNoteLength = 20

// FieldErrors maps request fields to validation messages
type FieldErrors map[string]string

// Summary returns a single message suitable for a toast, fields sorted for stable output.
func (f FieldErrors) Summary() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, f[k])
	}
	return strings.Join(msgs, "; ")
}

// StatusUpdatedNote is the note recorded by a status-only update.
func StatusUpdatedNote(status OrderStatus) string {
	return fmt.Sprintf("Order status updated to %s", status)
}

// StatusUpdate is the seller's request to move an order to Target with a note.
type StatusUpdate struct {
	Target  OrderStatus
	Note    string
	Courier *Courier
	Images  []string
	Date    *time.Time
}

// CleanNote returns the note without a duplicated status prefix.
func (u StatusUpdate) CleanNote() string {
	return StripStatusPrefix(u.Target, u.Note)
}

// Validate checks the update before any storage or network access. Nil means valid.
func (u StatusUpdate) Validate() FieldErrors {
	errs := FieldErrors{}

	if !u.Target.IsValid() {
		errs["orderStatus"] = fmt.Sprintf("unknown order status %q", u.Target)
	}

	if n := utf8.RuneCountInString(u.CleanNote()); n < MinProcessNoteLength {
		errs["process"] = fmt.Sprintf("please provide a more detailed process description (min %d characters)", MinProcessNoteLength)
	}

	switch u.Target {
	case OrderStatusShipped:
		if u.Courier == nil || strings.TrimSpace(u.Courier.Name) == "" {
			errs["courier"] = "courier information is required for shipping updates"
		}
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		if u.Courier != nil {
			errs["courier"] = fmt.Sprintf("courier information cannot be attached to a %s update", u.Target)
		}
	}

	for i, img := range u.Images {
		if !isHTTPURL(img) {
			errs[fmt.Sprintf("images[%d]", i)] = "image must be an absolute http(s) URL"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
