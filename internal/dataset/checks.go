package dataset

// Check is a known-answer query run against a freshly built dataset.
type Check struct {
	Name string
	SQL  string
}

var Checks = []Check{
	{
		Name: "overall_failure_rate",
		SQL: `SELECT ROUND((SUM(CASE WHEN transaction_status = 'FAILED' THEN 1 ELSE 0 END) * 100.0) / COUNT(*), 2) AS failure_rate_percentage
FROM transactions`,
	},
	{
		Name: "top_flagged_merchant_categories",
		SQL: `SELECT merchant_category, COUNT(*) AS flagged_count
FROM transactions
WHERE fraud_flag = 1 AND transaction_type = 'P2M'
GROUP BY merchant_category
ORDER BY flagged_count DESC
LIMIT 3`,
	},
	{
		Name: "android_5g_weekend_failure_rate",
		SQL: `SELECT ROUND((SUM(CASE WHEN transaction_status = 'FAILED' THEN 1 ELSE 0 END) * 100.0) / COUNT(*), 2) AS android_5g_weekend_failure_rate
FROM transactions
WHERE device_type = 'Android' AND network_type = '5G' AND is_weekend = 1`,
	},
}
