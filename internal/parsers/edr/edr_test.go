package edr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
)

const positionsCSV = `PORTFOLIO,PTF_CCY,POSITION_DATE,ISIN,DESCRIPTION,ASSET_CLASS,CCY,QUANTITY,PRICE,COST_PRICE,MKT_VALUE,MKT_VALUE_PTF,ACCRUED_INT,MATURITY
"P001","EUR","05/12/2025","FR0000121014","LVMH, Moet Hennessy","ACT","EUR","10","650.5","600","6505","6505","",""
"P001","EUR","05/12/2025","XS1234567890","ACME 3,5% 2030","OBL","USD","100000","92.86","95","92860","85000","1200","15/06/2030"
"P001","EUR","05/12/2025","","Compte courant EUR","LIQ","EUR","15000","","","15000","15000","",""
"P001","EUR","05/12/2025","","Frais a regulariser","","","","","","0","","",""
`

const operationsCSV = `PORTFOLIO,TRADE_DATE,VALUE_DATE,BOOKING_DATE,TRX_CODE,DESCRIPTION,ISIN,SECURITY,QUANTITY,PRICE,AMOUNT,CCY,FEES,TAXES,DC
P001,03/12/2025,05/12/2025,03/12/2025,ACH,"Achat 10 LVMH",FR0000121014,LVMH,10,650.5,6505,EUR,12.5,,D
P001,04/12/2025,04/12/2025,04/12/2025,,"Impot sur dividende",,,,,"-15,00",EUR,,,
P001,04/12/2025,04/12/2025,,XXX,"Virement recu",,,,,2500,EUR,,,C
P001,04/12/2025,,,,,,,,,0,EUR,,,
`

func fileCtx(name string) model.FileContext {
	return model.FileContext{FileName: name, ProcessedAt: time.Date(2025, 12, 6, 8, 0, 0, 0, time.UTC)}
}

// TestExtractFileDate verifies file name routing and rejection.
//
// WHY: the statement date in the file name becomes the snapshot date when
// rows carry none. A file that does not follow the convention must be
// rejected before anything is stored.
func TestExtractFileDate(t *testing.T) {
	p := NewPositionsParser()

	t.Run("valid name", func(t *testing.T) {
		d, err := p.ExtractFileDate("portef_F14B2A5A_20251205.csv")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("directory prefix is ignored", func(t *testing.T) {
		d, err := p.ExtractFileDate("/inbox/edr/portef_AB12_20240131.csv")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("random name is a format error", func(t *testing.T) {
		_, err := p.ExtractFileDate("randomfile.csv")
		require.Error(t, err)
		assert.True(t, apperrors.IsFormatError(err))
		assert.ErrorIs(t, err, apperrors.ErrFilenameMismatch)
	})

	t.Run("impossible date is a format error", func(t *testing.T) {
		_, err := p.ExtractFileDate("portef_AB12_20251340.csv")
		assert.ErrorIs(t, err, apperrors.ErrFilenameMismatch)
	})

	t.Run("lowercase hex does not match", func(t *testing.T) {
		assert.False(t, p.MatchesPattern("portef_f14b_20251205.csv"))
		assert.True(t, NewOperationsParser().MatchesPattern("mvt_X1_20251205.csv"))
	})
}

func TestPositionsParser_Parse(t *testing.T) {
	p := NewPositionsParser()

	res, err := p.Parse([]byte(positionsCSV), fileCtx("portef_F14B2A5A_20251205.csv"))
	require.NoError(t, err)

	assert.Equal(t, "edr-positions", res.Parser)
	assert.Equal(t, 4, res.RowsTotal)
	assert.Equal(t, 3, res.RowsMapped)
	assert.Equal(t, 1, res.RowsSkipped, "row without identity is dropped")
	require.Len(t, res.Positions, 3)

	t.Run("equity with comma in quoted name", func(t *testing.T) {
		eq := res.Positions[0]
		assert.Equal(t, "LVMH, Moet Hennessy", eq.SecurityName)
		assert.Equal(t, model.SecurityTypeEquity, eq.SecurityType)
		assert.Equal(t, model.PriceTypeAbsolute, eq.PriceType)
		assert.Equal(t, 650.5, *eq.Price)
		assert.Equal(t, "EDR", eq.BankID)
		assert.Equal(t, "EDR|P001|FR0000121014|-", eq.UniqueKey)
		assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), eq.SnapshotDate)
		assert.Nil(t, eq.AccruedInterest)
		assert.Equal(t, "LVMH, Moet Hennessy", eq.RawPayload["DESCRIPTION"])
	})

	t.Run("bond price normalised and maturity kept", func(t *testing.T) {
		bond := res.Positions[1]
		assert.Equal(t, model.SecurityTypeBond, bond.SecurityType)
		assert.Equal(t, model.PriceTypePercentage, bond.PriceType)
		assert.Equal(t, 0.9286, *bond.Price)
		require.NotNil(t, bond.MaturityDate)
		assert.Equal(t, "EDR|P001|XS1234567890|2030-06-15", bond.UniqueKey)
		require.NotNil(t, bond.FXRate)
		assert.InDelta(t, 85000.0/92860.0, *bond.FXRate, 1e-12)
	})

	t.Run("cash line keyed by currency", func(t *testing.T) {
		cash := res.Positions[2]
		assert.Nil(t, cash.ISIN)
		assert.Equal(t, "EDR|P001|EUR:CASH|-", cash.UniqueKey)
	})
}

func TestPositionsParser_Validate(t *testing.T) {
	p := NewPositionsParser()

	t.Run("missing columns", func(t *testing.T) {
		err := p.Validate([]byte("PORTFOLIO,ISIN\nP1,FR0000121014\n"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidHeader)
	})

	t.Run("header only", func(t *testing.T) {
		err := p.Validate([]byte("PORTFOLIO,ISIN,ASSET_CLASS,CCY,QUANTITY,MKT_VALUE\n"))
		assert.ErrorIs(t, err, apperrors.ErrEmptyFile)
	})

	t.Run("parse rejects before mapping", func(t *testing.T) {
		_, err := p.Parse([]byte("foo,bar\n1,2\n"), fileCtx("portef_AB_20251205.csv"))
		assert.True(t, apperrors.IsFormatError(err))
	})

	t.Run("bad name is rejected without file date override", func(t *testing.T) {
		_, err := p.Parse([]byte(positionsCSV), fileCtx("randomfile.csv"))
		assert.ErrorIs(t, err, apperrors.ErrFilenameMismatch)
	})
}

func TestOperationsParser_Parse(t *testing.T) {
	p := NewOperationsParser()

	res, err := p.Parse([]byte(operationsCSV), fileCtx("mvt_X1_20251205.csv"))
	require.NoError(t, err)
	assert.Equal(t, model.FileKindSecurityOperations, res.Kind)
	assert.Equal(t, 4, res.RowsTotal)
	require.Len(t, res.Operations, 3)
	assert.Equal(t, 1, res.RowsSkipped)

	buy := res.Operations[0]
	assert.Equal(t, model.OperationTypeBuy, buy.OperationType)
	assert.Equal(t, model.DirectionDebit, buy.Direction)
	assert.Equal(t, -6505.0, buy.Amount)
	assert.Equal(t, 12.5, *buy.Fees)
	assert.Equal(t, time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC), buy.OperationDate)
	assert.NotEmpty(t, buy.ContentHash)

	tax := res.Operations[1]
	assert.Equal(t, model.OperationTypeTax, tax.OperationType)
	assert.Equal(t, model.DirectionDebit, tax.Direction)
	assert.Equal(t, -15.0, tax.Amount)

	transfer := res.Operations[2]
	assert.Equal(t, model.OperationTypePaymentIn, transfer.OperationType)
	assert.Equal(t, 2500.0, transfer.Amount)
	assert.Nil(t, transfer.BookingDate)
}
