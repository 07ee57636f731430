package receipt

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub-server-go/models"
)

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:          "0.00",
		100:        "100.00",
		1000:       "1,000.00",
		1250000.5:  "1,250,000.50",
		-50:        "-50.00",
		-123456.78: "-123,456.78",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(in), in)
	}
}

func TestTuitionPDF(t *testing.T) {
	paid := time.Date(2026, 9, 30, 9, 0, 0, 0, time.UTC)
	r := models.TuitionReceipt{
		Number: "HP-202609-0001", Month: "2026-09", Sessions: 3, UnitPrice: 150000, Discount: 50000,
		Amount: 400000, Paid: true, PaidAt: &paid, Note: "Paid in cash", CreatedAt: paid,
	}
	var buf bytes.Buffer
	require.NoError(t, Tuition(&buf, "Bright Minds", r, "An Nguyễn", "Math 7"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestSalaryPDF(t *testing.T) {
	r := models.SalaryReceipt{
		Number: "SL-202609-0001", Month: "2026-09", Sessions: 8, Rate: 300000, Bonus: 100000, Deduction: 20000,
		Amount: 2480000, CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	var buf bytes.Buffer
	require.NoError(t, Salary(&buf, "Bright Minds", r, "Linh Tran"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
