package fixture

import "strings"

var abbreviations = map[string]string{
	// nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone", "mobile": "phone",
	"pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "zip": "zipcode", "postal": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"dist": "district", "bal": "balance", "mail": "email",

	// flags
	"yn": "yesno", "is": "yesno", "use": "yesno", "flg": "flag", "has": "yesno",
	"active": "yesno", "enabled": "yesno",
}

// Hint expands abbreviations in a snake_case column name into a
// space-separated phrase, e.g. "usr_addr" becomes "user address".
func Hint(column string) string {
	parts := strings.Split(strings.ToLower(column), "_")
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}
	return strings.Join(parts, " ")
}

func hintHas(hint string, words ...string) bool {
	for _, w := range words {
		for _, part := range strings.Fields(hint) {
			if part == w {
				return true
			}
		}
	}
	return false
}
