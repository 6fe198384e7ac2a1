package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	merchantCategories = []string{"Grocery", "Food", "Shopping", "Fuel", "Utilities", "Entertainment", "Healthcare", "Transport", "Education", "Other"}
	ageGroups          = []string{"18-25", "26-35", "36-45", "46-55", "56+"}
	states             = []string{"Maharashtra", "Karnataka", "Tamil Nadu", "Delhi", "Uttar Pradesh", "Gujarat", "Rajasthan", "West Bengal", "Telangana", "Andhra Pradesh"}
	banks              = []string{"SBI", "HDFC", "ICICI", "Axis", "Kotak", "PNB", "Yes Bank", "IndusInd"}
)

// Generator produces synthetic transactions. Output is fully determined by
// the seed and the start time.
type Generator struct {
	rnd      *rand.Rand
	start    time.Time
	sequence int64
}

func NewGenerator(seed int64, start time.Time) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: start.UTC(),
	}
}

func (g *Generator) Next() Transaction {
	g.sequence++
	at := g.start.Add(time.Duration(g.rnd.Int63n(int64(90 * 24 * time.Hour))))
	txnType := TypeP2M
	if g.rnd.Intn(100) < 40 {
		txnType = TypeP2P
	}

	txn := Transaction{
		TransactionID:     fmt.Sprintf("TXN%010d", g.sequence),
		Timestamp:         at.Format("2006-01-02 15:04:05"),
		TransactionType:   txnType,
		TransactionAmount: g.pickAmount(txnType),
		TransactionStatus: g.pickStatus(),
		SenderAgeGroup:    pickOne(g.rnd, ageGroups),
		SenderState:       pickOne(g.rnd, states),
		SenderBank:        pickOne(g.rnd, banks),
		ReceiverBank:      pickOne(g.rnd, banks),
		DeviceType:        g.pickDevice(),
		NetworkType:       pickOne(g.rnd, []string{"4G", "5G", "WiFi"}),
		HourOfDay:         int64(at.Hour()),
		DayOfWeek:         at.Weekday().String(),
		IsWeekend:         boolFlag(at.Weekday() == time.Saturday || at.Weekday() == time.Sunday),
	}
	if txnType == TypeP2M {
		txn.MerchantCategory = pickOne(g.rnd, merchantCategories)
	} else {
		txn.ReceiverAgeGroup = pickOne(g.rnd, ageGroups)
	}
	if g.rnd.Intn(1000) < 2 {
		txn.FraudFlag = 1
	}
	return Derive(txn)
}

// Generate returns the next n transactions.
func (g *Generator) Generate(n int) []Transaction {
	txns := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		txns = append(txns, g.Next())
	}
	return txns
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 94:
		return "SUCCESS"
	case p < 99:
		return "FAILED"
	default:
		return "PENDING"
	}
}

func (g *Generator) pickDevice() string {
	if g.rnd.Intn(100) < 75 {
		return "Android"
	}
	return "iOS"
}

// pickAmount draws from a log-normal so most payments are small with a long
// tail above the high-value threshold.
func (g *Generator) pickAmount(txnType string) int64 {
	mu := 6.5
	if txnType == TypeP2P {
		mu = 7.0
	}
	amount := math.Exp(mu + g.rnd.NormFloat64()*1.1)
	return int64(math.Max(1, math.Min(math.Round(amount), 100000)))
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
