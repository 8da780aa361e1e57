// Package fixture fills tables with deterministic fake rows for rehearsing
// migrations.
package fixture

import (
	"fmt"
	"strings"
	"time"

	"db-migrate/internal/schema"
	"db-migrate/internal/typemap"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
)

// Generator produces column values. The same seed yields the same values.
type Generator struct {
	faker *gofakeit.Faker
	epoch time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		epoch: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// Value generates a value for col. The column name hint takes priority for
// text columns; everything else is driven by the type family.
func (g *Generator) Value(col schema.ColumnSchema) any {
	hint := Hint(col.Name)
	f := g.faker

	switch typemap.FamilyOf(col.Type) {
	case typemap.FamilyText:
		return truncate(g.text(hint), typemap.Length(col.Type))

	case typemap.FamilyInteger:
		if hintHas(hint, "yesno", "flag") {
			return f.Number(0, 1)
		}
		if hintHas(hint, "year") {
			return 2000 + f.Number(0, 25)
		}
		if strings.Contains(strings.ToUpper(col.Type), "SMALLINT") {
			return f.Number(1, 30000)
		}
		return f.Number(1, 50000)

	case typemap.FamilyFloat, typemap.FamilyNumeric:
		return f.Price(0.99, 99.99)

	case typemap.FamilyBoolean:
		return f.Bool()

	case typemap.FamilyTemporal:
		t := f.DateRange(g.epoch, g.epoch.AddDate(1, 0, 0))
		switch typemap.BaseType(col.Type) {
		case "DATE":
			return t.Format(time.DateOnly)
		case "TIME", "TIME WITH TIME ZONE":
			return t.Format(time.TimeOnly)
		}
		return t.Format(time.DateTime)

	case typemap.FamilyJSON:
		return fmt.Sprintf(`{"%s":%d}`, f.Word(), f.Number(1, 100))

	case typemap.FamilyUUID:
		return f.UUID()

	case typemap.FamilyBinary:
		return []byte(f.LetterN(8))

	case typemap.FamilyArray:
		return pq.StringArray{f.Word(), f.Word()}
	}

	if col.Nullable {
		return nil
	}
	return f.Word()
}

func (g *Generator) text(hint string) string {
	f := g.faker
	switch {
	case hintHas(hint, "id", "code"):
		return f.LetterN(10)
	case hintHas(hint, "email"):
		return f.Email()
	case hintHas(hint, "phone"):
		return f.Phone()
	case hintHas(hint, "first"):
		return f.FirstName()
	case hintHas(hint, "last"):
		return f.LastName()
	case hintHas(hint, "name", "user"):
		return f.Name()
	case hintHas(hint, "address", "street"):
		return f.Street()
	case hintHas(hint, "city"):
		return f.City()
	case hintHas(hint, "country"):
		return f.Country()
	case hintHas(hint, "zipcode"):
		return f.Zip()
	case hintHas(hint, "url", "link"):
		return f.URL()
	case hintHas(hint, "ip"):
		return f.IPv4Address()
	case hintHas(hint, "password"):
		return f.Password(true, true, true, false, false, 12)
	case hintHas(hint, "yesno", "flag"):
		if f.Bool() {
			return "Y"
		}
		return "N"
	case hintHas(hint, "year"):
		return fmt.Sprintf("%d", 2000+f.Number(0, 25))
	case hintHas(hint, "title", "subject"):
		return f.Sentence(3)
	case hintHas(hint, "description", "content", "comment", "text", "message", "body", "bio"):
		return f.Sentence(10)
	}
	return f.Word()
}
