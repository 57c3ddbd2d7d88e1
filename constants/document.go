package constants

import "strings"

// DocumentType classifies an uploaded accounting document.
type DocumentType string

const (
	DocTypeBankStatement DocumentType = "bank_statement"
	DocTypeInvoice       DocumentType = "invoice"
	DocTypeReceipt       DocumentType = "receipt"
	DocTypeOther         DocumentType = "other"
)

var DocumentTypes = []DocumentType{DocTypeBankStatement, DocTypeInvoice, DocTypeReceipt, DocTypeOther}

func IsValidDocumentType(s string) bool {
	for _, d := range DocumentTypes {
		if string(d) == s {
			return true
		}
	}
	return false
}

// StorageType says which store holds the canonical public URL for a record.
type StorageType string

const (
	StoragePrimary   StorageType = "primary"   // GridFS handle is canonical
	StorageSecondary StorageType = "secondary" // CDN-backed secondary URL is canonical
)

// AllowedExtensions holds the default allowed file extensions for document intake.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"csv":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ContentTypeForExt maps a file extension to the content type stored alongside
// the blob. Falls back to octet-stream.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
