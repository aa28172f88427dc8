package incident

type Severity string
type Status string
type Type string

const (
	INFO     Severity = "INFO"
	LOW      Severity = "LOW"
	MEDIUM   Severity = "MEDIUM"
	HIGH     Severity = "HIGH"
	CRITICAL Severity = "CRITICAL"
)

const (
	OnInvestigation Status = "On Investigation"
	Resolved        Status = "Resolved"
)

const (
	SiteDown      Type = "site_down"
	SiteError     Type = "site_error"
	SiteRecovered Type = "site_recovered"
)
