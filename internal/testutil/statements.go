package testutil

import (
	"fmt"
	"strings"
	"time"
)

// EDRPositionsFile returns a well-formed EDR position snapshot dated d: one
// equity, one bond and one cash line in portfolio P001.
func EDRPositionsFile(d time.Time) (string, []byte) {
	day := d.Format("02/01/2006")
	var b strings.Builder
	b.WriteString("PORTFOLIO,PTF_CCY,POSITION_DATE,ISIN,DESCRIPTION,ASSET_CLASS,CCY,QUANTITY,PRICE,COST_PRICE,MKT_VALUE,MKT_VALUE_PTF,ACCRUED_INT,MATURITY\n")
	fmt.Fprintf(&b, "\"P001\",\"EUR\",\"%s\",\"FR0000121014\",\"LVMH, Moet Hennessy\",\"ACT\",\"EUR\",\"10\",\"650.5\",\"600\",\"6505\",\"6505\",\"\",\"\"\n", day)
	fmt.Fprintf(&b, "\"P001\",\"EUR\",\"%s\",\"XS1234567890\",\"ACME 3,5%% 2030\",\"OBL\",\"USD\",\"100000\",\"92.86\",\"95\",\"92860\",\"85000\",\"1200\",\"15/06/2030\"\n", day)
	fmt.Fprintf(&b, "\"P001\",\"EUR\",\"%s\",\"\",\"Compte courant EUR\",\"LIQ\",\"EUR\",\"15000\",\"\",\"\",\"15000\",\"15000\",\"\",\"\"\n", day)
	return "portef_AB12_" + d.Format("20060102") + ".csv", []byte(b.String())
}

// EDROperationsFile returns a well-formed EDR movement log dated d with three
// operations.
func EDROperationsFile(d time.Time) (string, []byte) {
	day := d.Format("02/01/2006")
	var b strings.Builder
	b.WriteString("PORTFOLIO,TRADE_DATE,VALUE_DATE,BOOKING_DATE,TRX_CODE,DESCRIPTION,ISIN,SECURITY,QUANTITY,PRICE,AMOUNT,CCY,FEES,TAXES,DC\n")
	fmt.Fprintf(&b, "P001,%s,%s,%s,ACH,\"Achat 10 LVMH\",FR0000121014,LVMH,10,650.5,6505,EUR,12.5,,D\n", day, day, day)
	fmt.Fprintf(&b, "P001,%s,%s,%s,,\"Impot sur dividende\",,,,,\"-15,00\",EUR,,,\n", day, day, day)
	fmt.Fprintf(&b, "P001,%s,%s,,XXX,\"Virement recu\",,,,,2500,EUR,,,C\n", day, day)
	return "mvt_X1_" + d.Format("20060102") + ".csv", []byte(b.String())
}
