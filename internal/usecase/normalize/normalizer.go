// Package normalize turns loosely-typed catalog records into canonical products.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"shein-verse-bot/internal/domain/entity"
)

const unknownProductName = "Unknown product"

// Field name variants seen across catalog API versions, in lookup order.
var (
	idKeys        = []string{"goods_id", "goodsId", "id", "product_id", "productId", "sku", "goods_sn"}
	nameKeys      = []string{"goods_name", "goodsName", "name", "title", "product_name", "productName"}
	priceKeys     = []string{"salePrice", "sale_price", "price", "retailPrice", "retail_price"}
	imageKeys     = []string{"goods_img", "goodsImg", "image", "image_url", "imageUrl", "img"}
	urlKeys       = []string{"goods_url_path", "goodsUrlPath", "url", "link", "product_url", "productUrl"}
	availableKeys = []string{"in_stock", "inStock", "available", "is_available", "isAvailable"}
	soldOutKeys   = []string{"is_sold_out", "soldOut", "soldOutStatus", "sold_out"}
	stockKeys     = []string{"stock", "stock_quantity", "stockQuantity", "quantity"}
	variantKeys   = []string{"sizes", "available_sizes", "variants", "skus", "sku_list", "size_list"}
	categoryKeys  = []string{"category", "gender", "category_name"}
	categoryIDKey = []string{"cat_id", "catId", "category_id"}

	variantLabelKeys = []string{"size", "name", "attr_value_name", "label", "value"}
)

var (
	womenKeywords = map[string]struct{}{
		"women": {}, "woman": {}, "womens": {}, "female": {}, "girl": {}, "girls": {},
		"lady": {}, "ladies": {}, "dress": {}, "skirt": {}, "bra": {},
	}
	menKeywords = map[string]struct{}{
		"men": {}, "mens": {}, "man": {}, "male": {}, "boy": {}, "boys": {}, "guy": {}, "unisex": {},
	}
)

// Config holds the collection-specific knowledge the normalizer needs.
type Config struct {
	// BaseURL is used for relative links and for buy URLs built from the id.
	BaseURL string

	// DefaultCurrency applies when neither a currency field nor a symbol is present.
	DefaultCurrency string

	MenCategoryIDs   []string
	WomenCategoryIDs []string

	// DefaultCategory is used when nothing in the record hints at a category.
	DefaultCategory string
}

// Normalizer converts raw records into products. It holds no mutable state.
type Normalizer struct {
	cfg     Config
	menIDs  map[string]struct{}
	womenID map[string]struct{}
}

// New creates a Normalizer.
func New(cfg Config) *Normalizer {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "INR"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Normalizer{
		cfg:     cfg,
		menIDs:  toSet(cfg.MenCategoryIDs),
		womenID: toSet(cfg.WomenCategoryIDs),
	}
}

// Normalize builds a Product from one raw record.
// It fails with *entity.MalformedRecordError when the id is missing, when both
// price and name are missing, or when a present price cannot be parsed.
func (n *Normalizer) Normalize(raw entity.RawRecord) (entity.Product, error) {
	id := stringValue(lookup(raw, idKeys))
	if id == "" {
		return entity.Product{}, &entity.MalformedRecordError{Field: "id", Reason: "missing product id"}
	}

	name := strings.TrimSpace(stringValue(lookup(raw, nameKeys)))
	priceRaw := lookup(raw, priceKeys)

	if name == "" && isAbsent(priceRaw) {
		return entity.Product{}, &entity.MalformedRecordError{Field: "name,price", Reason: "both name and price are missing"}
	}

	p := entity.Product{
		ID:   id,
		Name: name,
	}
	if p.Name == "" {
		p.Name = unknownProductName
	}

	if !isAbsent(priceRaw) {
		money, err := n.parsePrice(priceRaw)
		if err != nil {
			return entity.Product{}, &entity.MalformedRecordError{Field: "price", Reason: err.Error()}
		}
		p.Price = money
		p.HasPrice = true
	}

	p.ImageURL = n.absoluteURL(stringValue(lookup(raw, imageKeys)))
	p.BuyURL = n.absoluteURL(stringValue(lookup(raw, urlKeys)))
	if p.BuyURL == "" {
		p.BuyURL = fmt.Sprintf("%s/p-%s.html", n.cfg.BaseURL, id)
	}

	inStock, hasVariants := parseVariants(lookup(raw, variantKeys))
	p.Variants = entity.NormalizeVariants(inStock)
	if hasVariants {
		p.VariantSignature = entity.VariantSignatureOf(p.Variants)
	}
	p.Available = availability(raw, len(p.Variants), hasVariants)
	p.Category = n.category(raw, p.Name)

	return p, nil
}

// NormalizeAll normalizes a batch, isolating failures to the offending record.
func (n *Normalizer) NormalizeAll(records []entity.RawRecord) ([]entity.Product, []error) {
	products := make([]entity.Product, 0, len(records))
	var errs []error
	for i, raw := range records {
		p, err := n.Normalize(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		products = append(products, p)
	}
	return products, errs
}

// parsePrice rejects negative amounts.
func (n *Normalizer) parsePrice(v any) (entity.Money, error) {
	m, err := n.parseAmount(v)
	if err != nil {
		return entity.Money{}, err
	}
	if m.Amount.IsNegative() {
		return entity.Money{}, fmt.Errorf("negative price %s", m.Amount)
	}
	return m, nil
}

func (n *Normalizer) parseAmount(v any) (entity.Money, error) {
	if obj, ok := v.(map[string]any); ok {
		currency := stringValue(lookup(obj, []string{"currency", "currencyCode", "currency_code"}))
		amount := lookup(obj, []string{"amount", "value", "usdAmount"})
		if isAbsent(amount) {
			amount = lookup(obj, []string{"amountWithSymbol", "display"})
		}
		if isAbsent(amount) {
			return entity.Money{}, fmt.Errorf("price object has no amount")
		}
		m, err := n.parseAmount(amount)
		if err != nil {
			return entity.Money{}, err
		}
		if currency != "" {
			m.Currency = strings.ToUpper(currency)
		}
		return m, nil
	}

	switch t := v.(type) {
	case float64:
		return entity.Money{Amount: decimal.NewFromFloat(t), Currency: n.cfg.DefaultCurrency}, nil
	case float32:
		return entity.Money{Amount: decimal.NewFromFloat32(t), Currency: n.cfg.DefaultCurrency}, nil
	case int:
		return entity.Money{Amount: decimal.NewFromInt(int64(t)), Currency: n.cfg.DefaultCurrency}, nil
	case int64:
		return entity.Money{Amount: decimal.NewFromInt(t), Currency: n.cfg.DefaultCurrency}, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return entity.Money{}, fmt.Errorf("cannot parse %q", t.String())
		}
		return entity.Money{Amount: d, Currency: n.cfg.DefaultCurrency}, nil
	case string:
		return n.parsePriceString(t)
	default:
		return entity.Money{}, fmt.Errorf("unsupported price type %T", v)
	}
}

// parsePriceString accepts values such as "₹1,299.00", "Rs. 999", "$12.50" or "1299 INR".
func (n *Normalizer) parsePriceString(s string) (entity.Money, error) {
	currency := detectCurrency(s)
	if currency == "" {
		currency = n.cfg.DefaultCurrency
	}

	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			// Negative amounts and ranges such as "999 - 1299" are not prices.
			return entity.Money{}, fmt.Errorf("cannot parse %q", s)
		case r == '.':
			// "Rs." ends a currency label; a decimal point precedes a digit.
			afterLetter := i > 0 && unicode.IsLetter(runes[i-1])
			beforeDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])
			if !afterLetter && beforeDigit {
				b.WriteRune(r)
			}
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return entity.Money{}, fmt.Errorf("cannot parse %q", s)
	}
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return entity.Money{}, fmt.Errorf("cannot parse %q", s)
	}
	return entity.Money{Amount: d, Currency: currency}, nil
}

func detectCurrency(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "₹"), strings.Contains(upper, "INR"), strings.HasPrefix(upper, "RS"):
		return "INR"
	case strings.Contains(s, "€"), strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(s, "£"), strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(s, "$"), strings.Contains(upper, "USD"):
		return "USD"
	}
	return ""
}

func (n *Normalizer) absoluteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	default:
		return n.cfg.BaseURL + "/" + strings.TrimLeft(raw, "/")
	}
}

func (n *Normalizer) category(raw entity.RawRecord, name string) string {
	if c := classifyText(stringValue(lookup(raw, categoryKeys))); c != "" {
		return c
	}
	if id := stringValue(lookup(raw, categoryIDKey)); id != "" {
		if _, ok := n.menIDs[id]; ok {
			return entity.CategoryMen
		}
		if _, ok := n.womenID[id]; ok {
			return entity.CategoryWomen
		}
	}
	if c := classifyText(name); c != "" {
		return c
	}
	return n.cfg.DefaultCategory
}

// classifyText looks for gender keywords; women keywords take precedence.
func classifyText(s string) string {
	if s == "" {
		return ""
	}
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	men := false
	for _, w := range words {
		if _, ok := womenKeywords[w]; ok {
			return entity.CategoryWomen
		}
		if _, ok := menKeywords[w]; ok {
			men = true
		}
	}
	if men {
		return entity.CategoryMen
	}
	return ""
}

func availability(raw entity.RawRecord, inStockVariants int, hasVariants bool) bool {
	if b, ok := boolValue(lookup(raw, availableKeys)); ok {
		return b
	}
	if b, ok := boolValue(lookup(raw, soldOutKeys)); ok {
		return !b
	}
	if status := strings.ToLower(stringValue(raw["stock_status"])); status != "" {
		switch status {
		case "in_stock", "instock", "available":
			return true
		case "out_of_stock", "outofstock", "sold_out", "unavailable":
			return false
		}
	}
	if q, ok := numberValue(lookup(raw, stockKeys)); ok {
		return q > 0
	}
	if hasVariants {
		return inStockVariants > 0
	}
	return true
}

// parseVariants returns the in-stock labels and whether any variant data was present.
func parseVariants(v any) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		var labels []string
		for _, item := range t {
			switch it := item.(type) {
			case string:
				labels = append(labels, it)
			case map[string]any:
				label := stringValue(lookup(it, variantLabelKeys))
				if label == "" || !variantInStock(it) {
					continue
				}
				labels = append(labels, label)
			}
		}
		return labels, true
	case []string:
		return t, true
	case map[string]any:
		var labels []string
		for label, qty := range t {
			if b, ok := boolValue(qty); ok {
				if b {
					labels = append(labels, label)
				}
				continue
			}
			if q, ok := numberValue(qty); ok && q > 0 {
				labels = append(labels, label)
			}
		}
		return labels, true
	default:
		return nil, false
	}
}

func variantInStock(item map[string]any) bool {
	if b, ok := boolValue(lookup(item, []string{"in_stock", "inStock", "available"})); ok {
		return b
	}
	if b, ok := boolValue(lookup(item, soldOutKeys)); ok {
		return !b
	}
	if q, ok := numberValue(lookup(item, []string{"stock", "quantity", "qty"})); ok {
		return q > 0
	}
	return true
}

func lookup(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && !isAbsent(v) {
			return v
		}
	}
	return nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y":
			return true, true
		case "false", "0", "no", "n":
			return false, true
		}
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case json.Number:
		f, err := t.Float64()
		if err == nil {
			return f != 0, true
		}
	}
	return false, false
}

func numberValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
