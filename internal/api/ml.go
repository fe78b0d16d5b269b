package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"portfel/internal/core"
	"portfel/internal/mapper"
)

// DefaultSuggestions is how many categories are asked for per title.
const DefaultSuggestions = 2

// MLClient calls the category suggestion and receipt trimming service.
type MLClient struct {
	up *Upstream
}

func NewMLClient(up *Upstream) *MLClient {
	return &MLClient{up: up}
}

// SuggestCategories asks for the k most likely categories of title, best
// first. Labels the service returns that are not known categories are
// skipped. A non-2xx answer yields no suggestions and no error.
func (c *MLClient) SuggestCategories(ctx context.Context, title string, k int) ([]core.CategorySuggestion, error) {
	const op = "get-category"
	if k <= 0 {
		k = DefaultSuggestions
	}
	req, err := jsonRequest(op, http.MethodPost, "/get-category", map[string]any{"title": title, "k": k})
	if err != nil {
		return nil, err
	}
	resp, err := c.up.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	var payload map[string]struct {
		Category string  `json:"category"`
		Score    float64 `json:"score"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	type ranked struct {
		rank int
		core.CategorySuggestion
	}
	var list []ranked
	for key, entry := range payload {
		rank, ok := suggestionRank(key)
		if !ok {
			continue
		}
		code, ok := mapper.CategoryCode(strings.ToLower(strings.TrimSpace(entry.Category)))
		if !ok {
			continue
		}
		list = append(list, ranked{rank, core.CategorySuggestion{Category: code, Score: entry.Score}})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].rank < list[j].rank })

	out := make([]core.CategorySuggestion, len(list))
	for i, r := range list {
		out[i] = r.CategorySuggestion
	}
	return out, nil
}

// suggestionRank parses the N of a category_N key.
func suggestionRank(key string) (int, bool) {
	n, found := strings.CutPrefix(key, "category_")
	if !found {
		return 0, false
	}
	rank, err := strconv.Atoi(n)
	return rank, err == nil
}

// TrimReceipt uploads a receipt photo and returns the trimmed image with
// whatever fields were read from it. The service answers either with the
// image itself or with a JSON document carrying a base64 image and the OCR
// fields; fields failing validation are dropped. A non-2xx answer yields a
// nil scan and no error.
func (c *MLClient) TrimReceipt(ctx context.Context, filename, contentType string, image []byte) (*core.ReceiptScan, error) {
	const op = "trim-receipt"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("%s: create part: %w", op, err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("%s: write part: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: close multipart: %w", op, err)
	}

	resp, err := c.up.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/trim-receipt",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.header.Get("Content-Type"))
	if mediaType != "application/json" {
		if mediaType == "" {
			mediaType = http.DetectContentType(resp.body)
		}
		return &core.ReceiptScan{Image: resp.body, ContentType: mediaType}, nil
	}
	return decodeReceipt(resp.body)
}

type receiptPayload struct {
	Image             string          `json:"image"`
	ContentType       string          `json:"contentType"`
	NIP               json.RawMessage `json:"nip"`
	PaymentType       string          `json:"paymentType"`
	Sum               json.RawMessage `json:"sum"`
	TransactionNumber json.RawMessage `json:"transactionNumber"`
	Date              string          `json:"date"`
}

func decodeReceipt(body []byte) (*core.ReceiptScan, error) {
	var p receiptPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("trim-receipt: decode: %w", err)
	}
	scan := &core.ReceiptScan{}
	if p.Image != "" {
		img, err := base64.StdEncoding.DecodeString(p.Image)
		if err != nil {
			return nil, fmt.Errorf("trim-receipt: image: %w", err)
		}
		scan.Image = img
		scan.ContentType = p.ContentType
		if scan.ContentType == "" {
			scan.ContentType = http.DetectContentType(img)
		}
	}
	if nip, ok := core.NormalizeNIP(rawString(p.NIP)); ok {
		scan.NIP = nip
	}
	pt := mapper.PaymentTypeCode(strings.TrimSpace(p.PaymentType))
	if !pt.Valid() {
		pt = core.PaymentType(strings.ToUpper(string(pt)))
	}
	if pt.Valid() {
		scan.PaymentType = pt
	}
	if sum, err := core.ParseAmount(rawString(p.Sum)); err == nil {
		scan.Sum.Decimal = sum
		scan.Sum.Valid = true
	}
	if tn := rawString(p.TransactionNumber); isDigits(tn) {
		scan.TransactionNumber = tn
	}
	if d, err := core.ParseDate(p.Date); err == nil {
		scan.Date = d
	}
	return scan, nil
}

// rawString reads a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	if unq, err := strconv.Unquote(s); err == nil {
		return strings.TrimSpace(unq)
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
