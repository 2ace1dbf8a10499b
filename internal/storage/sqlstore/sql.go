package sqlstore

// Statements use ? placeholders; Backend.bind rewrites them for postgres.

const (
	bankKey   = "bank_id"
	reviewKey = "review_id"
	runKey    = "run_id"
)

var (
	bankCols   = []string{"bank_id", "bank_name", "app_name", "app_id"}
	reviewCols = []string{
		"review_id", "bank_id", "review_text", "rating", "review_date",
		"sentiment_label", "sentiment_score", "scoring_degraded", "themes", "source",
	}
	runCols = []string{
		"run_id", "started_at", "finished_at", "status", "failed_stage",
		"processed", "strategy", "degraded", "skipped", "error",
	}
)

// rows per multi-VALUES insert; stays well under every driver's placeholder cap
const upsertChunk = 500

const listBanksSQL = `
SELECT bank_id, bank_name, app_name, app_id
FROM banks
ORDER BY bank_id`

const bankSummariesSQL = `
SELECT
  b.bank_id,
  b.bank_name,
  b.app_name,
  COUNT(r.review_id),
  COALESCE(AVG(r.rating), 0),
  COALESCE(MIN(r.rating), 0),
  COALESCE(MAX(r.rating), 0)
FROM banks b
LEFT JOIN reviews r ON r.bank_id = b.bank_id
GROUP BY b.bank_id, b.bank_name, b.app_name
ORDER BY b.bank_id`

// sentimentSelect is completed with an optional bank filter and the GROUP BY.
const sentimentSelect = `
SELECT r.sentiment_label, COUNT(*), COALESCE(%s, 0)
FROM reviews r`

const themeCountsSQL = `
SELECT themes, COUNT(*)
FROM reviews
GROUP BY themes`

const listReviewsSelect = `
SELECT
  r.review_id,
  r.bank_id,
  b.bank_name,
  b.app_name,
  r.review_text,
  r.rating,
  %s,
  r.sentiment_label,
  r.sentiment_score,
  r.scoring_degraded,
  r.themes,
  r.source
FROM reviews r
JOIN banks b ON b.bank_id = r.bank_id
WHERE r.bank_id = ?`
