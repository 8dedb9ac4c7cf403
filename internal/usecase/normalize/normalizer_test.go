package normalize_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/usecase/normalize"
)

func newNormalizer() *normalize.Normalizer {
	return normalize.New(normalize.Config{
		BaseURL:          "https://www.sheinindia.in/",
		DefaultCurrency:  "INR",
		MenCategoryIDs:   []string{"22542"},
		WomenCategoryIDs: []string{"22543"},
		DefaultCategory:  entity.CategoryMen,
	})
}

func TestNormalize_GoodsListRecord(t *testing.T) {
	n := newNormalizer()

	p, err := n.Normalize(entity.RawRecord{
		"goods_id":       float64(10234),
		"goods_name":     "Men Graphic Tee",
		"salePrice":      map[string]any{"amount": "799.00", "amountWithSymbol": "₹799.00"},
		"goods_img":      "//img.ltwebstatic.com/images3/10234.jpg",
		"goods_url_path": "/men-graphic-tee-p-10234.html",
		"cat_id":         "22542",
		"extra_field":    []any{"ignored"},
	})
	require.NoError(t, err)

	assert.Equal(t, "10234", p.ID)
	assert.Equal(t, "Men Graphic Tee", p.Name)
	assert.True(t, p.HasPrice)
	assert.True(t, p.Price.Amount.Equal(decimal.RequireFromString("799")))
	assert.Equal(t, "INR", p.Price.Currency)
	assert.Equal(t, "https://img.ltwebstatic.com/images3/10234.jpg", p.ImageURL)
	assert.Equal(t, "https://www.sheinindia.in/men-graphic-tee-p-10234.html", p.BuyURL)
	assert.True(t, p.Available)
	assert.Equal(t, entity.CategoryMen, p.Category)
	assert.Empty(t, p.VariantSignature)
}

func TestNormalize_FieldNamePermutations(t *testing.T) {
	n := newNormalizer()
	want := struct {
		id        string
		price     decimal.Decimal
		available bool
	}{"42", decimal.RequireFromString("1299.5"), true}

	records := map[string]entity.RawRecord{
		"goodsList API": {
			"goods_id": "42", "goods_name": "Cargo Pants",
			"salePrice": map[string]any{"amount": "1299.50"}, "in_stock": true,
		},
		"camelCase API": {
			"goodsId": json.Number("42"), "goodsName": "Cargo Pants",
			"price": json.Number("1299.5"), "inStock": "true",
		},
		"scraped HTML": {
			"id": "42", "title": "Cargo Pants", "price": "₹1,299.50", "available": "1",
		},
		"mobile API": {
			"product_id": float64(42), "product_name": "Cargo Pants",
			"sale_price": float64(1299.5), "is_sold_out": false,
		},
		"stock count": {
			"productId": 42, "name": "Cargo Pants", "retailPrice": "Rs. 1299.50", "stock": float64(3),
		},
		"variant map": {
			"sku": "42", "productName": "Cargo Pants",
			"price": map[string]any{"amount": 1299.5, "currency": "inr"},
			"sizes": map[string]any{"M": float64(2), "L": float64(0)},
		},
	}

	for name, raw := range records {
		t.Run(name, func(t *testing.T) {
			p, err := n.Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, want.id, p.ID)
			assert.True(t, want.price.Equal(p.Price.Amount), "price %s", p.Price.Amount)
			assert.Equal(t, "INR", p.Price.Currency)
			assert.Equal(t, want.available, p.Available)
		})
	}
}

func TestNormalize_PriceStrings(t *testing.T) {
	n := newNormalizer()

	tests := []struct {
		name     string
		in       string
		amount   string
		currency string
	}{
		{"TC-1: leading decimal point with dollar", "$.50", "0.50", "USD"},
		{"TC-2: leading decimal point with rupee", "₹.99", "0.99", "INR"},
		{"TC-3: rupee with thousands separator", "₹1,299.00", "1299", "INR"},
		{"TC-4: Rs. label with space", "Rs. 999", "999", "INR"},
		{"TC-5: Rs. label without space", "Rs.999", "999", "INR"},
		{"TC-6: trailing currency code", "1299 INR", "1299", "INR"},
		{"TC-7: dollars and cents", "$12.50", "12.5", "USD"},
		{"TC-8: bare number uses default currency", "450", "450", "INR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := n.Normalize(entity.RawRecord{"goods_id": "1", "goods_name": "a", "salePrice": tt.in})
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(p.Price.Amount), "got %s", p.Price.Amount)
			assert.Equal(t, tt.currency, p.Price.Currency)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	n := newNormalizer()

	tests := []struct {
		name  string
		raw   entity.RawRecord
		field string
	}{
		{
			name:  "TC-1: missing id",
			raw:   entity.RawRecord{"goods_name": "Tee", "price": "499"},
			field: "id",
		},
		{
			name:  "TC-2: blank id",
			raw:   entity.RawRecord{"goods_id": "  ", "goods_name": "Tee"},
			field: "id",
		},
		{
			name:  "TC-3: no name and no price",
			raw:   entity.RawRecord{"goods_id": "7"},
			field: "name,price",
		},
		{
			name:  "TC-4: unparseable price",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "price": "call us"},
			field: "price",
		},
		{
			name:  "TC-5: price object without amount",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "salePrice": map[string]any{"currency": "INR"}},
			field: "price",
		},
		{
			name:  "TC-6: negative price string",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "salePrice": "-5"},
			field: "price",
		},
		{
			name:  "TC-7: negative price number",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "salePrice": float64(-3)},
			field: "price",
		},
		{
			name:  "TC-8: price range",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "salePrice": "₹999 - ₹1,299"},
			field: "price",
		},
		{
			name:  "TC-9: negative amount in price object",
			raw:   entity.RawRecord{"goods_id": "7", "goods_name": "Tee", "salePrice": map[string]any{"amount": "-10.00"}},
			field: "price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entity.ErrMalformedRecord))

			var mr *entity.MalformedRecordError
			require.True(t, errors.As(err, &mr))
			assert.Equal(t, tt.field, mr.Field)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := newNormalizer()

	t.Run("missing name keeps price", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{"goods_id": "9", "price": "$12.50"})
		require.NoError(t, err)
		assert.Equal(t, "Unknown product", p.Name)
		assert.Equal(t, "USD", p.Price.Currency)
	})

	t.Run("missing price keeps name", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{"goods_id": "9", "goods_name": "Denim Jacket"})
		require.NoError(t, err)
		assert.False(t, p.HasPrice)
		assert.True(t, p.Price.Amount.IsZero())
	})

	t.Run("missing buy URL is built from id", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{"goods_id": "9", "goods_name": "Denim Jacket"})
		require.NoError(t, err)
		assert.Equal(t, "https://www.sheinindia.in/p-9.html", p.BuyURL)
	})

	t.Run("missing image stays empty", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{"goods_id": "9", "goods_name": "Denim Jacket"})
		require.NoError(t, err)
		assert.Empty(t, p.ImageURL)
	})
}

func TestNormalize_Variants(t *testing.T) {
	n := newNormalizer()

	t.Run("object list with stock", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{
			"goods_id": "5", "goods_name": "Hoodie", "price": 999,
			"skus": []any{
				map[string]any{"attr_value_name": "S", "stock": float64(0)},
				map[string]any{"attr_value_name": "M", "stock": float64(4)},
				map[string]any{"attr_value_name": "L", "in_stock": true},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"L", "M"}, p.Variants)
		assert.Equal(t, entity.VariantSignatureOf([]string{"M", "L"}), p.VariantSignature)
		assert.True(t, p.Available)
	})

	t.Run("all sizes sold out means unavailable", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{
			"goods_id": "5", "goods_name": "Hoodie", "price": 999,
			"sizes": map[string]any{"S": float64(0), "M": false},
		})
		require.NoError(t, err)
		assert.False(t, p.Available)
		assert.Empty(t, p.Variants)
	})

	t.Run("explicit flag wins over variants", func(t *testing.T) {
		p, err := n.Normalize(entity.RawRecord{
			"goods_id": "5", "goods_name": "Hoodie", "price": 999,
			"in_stock": false, "available_sizes": []any{"M"},
		})
		require.NoError(t, err)
		assert.False(t, p.Available)
	})
}

func TestNormalize_Category(t *testing.T) {
	n := newNormalizer()

	tests := []struct {
		name string
		raw  entity.RawRecord
		want string
	}{
		{"category field", entity.RawRecord{"goods_id": "1", "goods_name": "Tee", "category": "Women"}, entity.CategoryWomen},
		{"women category id", entity.RawRecord{"goods_id": "1", "goods_name": "Tee", "cat_id": float64(22543)}, entity.CategoryWomen},
		{"women keyword beats men", entity.RawRecord{"goods_id": "1", "goods_name": "Unisex Women Fit Dress"}, entity.CategoryWomen},
		{"men keyword", entity.RawRecord{"goods_id": "1", "goods_name": "Boys Cotton Shorts"}, entity.CategoryMen},
		{"women is not men", entity.RawRecord{"goods_id": "1", "goods_name": "Womens Jogger"}, entity.CategoryWomen},
		{"default", entity.RawRecord{"goods_id": "1", "goods_name": "Cotton Shorts"}, entity.CategoryMen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := n.Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Category)
		})
	}
}

func TestNormalizeAll_IsolatesFailures(t *testing.T) {
	n := newNormalizer()

	products, errs := n.NormalizeAll([]entity.RawRecord{
		{"goods_id": "1", "goods_name": "A", "price": "100"},
		{"goods_name": "no id"},
		{"goods_id": "3", "goods_name": "C", "price": "bad"},
		{"goods_id": "4", "goods_name": "D", "price": "400"},
	})

	require.Len(t, products, 2)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "4", products[1].ID)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, entity.ErrMalformedRecord))
	}
}
