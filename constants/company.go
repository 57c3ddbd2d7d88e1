package constants

// Company codes are the fixed tenant identifiers of the portal.
type Company string

const (
	CompanyMurphyWebServices Company = "murphy_web_services"
	CompanyMurphyMedia       Company = "murphy_media"
	CompanyMurphyConsulting  Company = "murphy_consulting"
	CompanyRGBHoldings       Company = "rgb_holdings"
)

var Companies = []Company{
	CompanyMurphyWebServices,
	CompanyMurphyMedia,
	CompanyMurphyConsulting,
	CompanyRGBHoldings,
}

func IsValidCompany(s string) bool {
	for _, c := range Companies {
		if string(c) == s {
			return true
		}
	}
	return false
}

// MonthNames holds the accepted month name strings for accounting periods.
// Periods are logical and intentionally not validated against upload date.
var MonthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func IsValidMonth(s string) bool {
	for _, m := range MonthNames {
		if m == s {
			return true
		}
	}
	return false
}
