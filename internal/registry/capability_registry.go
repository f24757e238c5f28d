package registry

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
)

// Capability produces an opaque value for a string field.
type Capability func() any

type CapabilityRegistry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		capabilities: make(map[string]Capability),
	}
}

func (r *CapabilityRegistry) Register(name string, capability Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[normalizeName(name)] = capability
}

func (r *CapabilityRegistry) Get(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("capability not found: %s", name)
	}
	return c, nil
}

func (r *CapabilityRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeName lets schemas use first_name, firstName or first-name.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func pick(values []string) Capability {
	return func() any { return values[rand.IntN(len(values))] }
}

func DefaultCapabilityRegistry() *CapabilityRegistry {
	r := NewCapabilityRegistry()

	r.Register("name", func() any { return faker.Name() })
	r.Register("first_name", func() any { return faker.FirstName() })
	r.Register("last_name", func() any { return faker.LastName() })
	r.Register("first_name_male", func() any { return faker.FirstNameMale() })
	r.Register("first_name_female", func() any { return faker.FirstNameFemale() })
	r.Register("email", func() any { return faker.Email() })
	r.Register("user_name", func() any { return faker.Username() })
	r.Register("password", func() any { return faker.Password() })
	r.Register("phone_number", func() any { return faker.Phonenumber() })
	r.Register("e164_phone_number", func() any { return faker.E164PhoneNumber() })

	r.Register("address", func() any { return faker.GetRealAddress().Address })
	r.Register("street_address", func() any { return faker.GetRealAddress().Address })
	r.Register("city", func() any { return faker.GetRealAddress().City })
	r.Register("state", func() any { return faker.GetRealAddress().State })
	r.Register("zipcode", func() any { return faker.GetRealAddress().PostalCode })
	r.Register("postcode", func() any { return faker.GetRealAddress().PostalCode })
	r.Register("latitude", func() any { return faker.Latitude() })
	r.Register("longitude", func() any { return faker.Longitude() })

	r.Register("url", func() any { return faker.URL() })
	r.Register("domain_name", func() any { return faker.DomainName() })
	r.Register("ipv4", func() any { return faker.IPv4() })
	r.Register("ipv6", func() any { return faker.IPv6() })
	r.Register("mac_address", func() any { return faker.MacAddress() })

	r.Register("word", func() any { return faker.Word() })
	r.Register("sentence", func() any { return faker.Sentence() })
	r.Register("text", func() any { return faker.Paragraph() })
	r.Register("paragraph", func() any { return faker.Paragraph() })

	r.Register("date", func() any { return faker.Date() })
	r.Register("time", func() any { return faker.TimeString() })
	r.Register("month_name", func() any { return faker.MonthName() })
	r.Register("year", func() any { return faker.YearString() })
	r.Register("day_of_week", func() any { return faker.DayOfWeek() })
	r.Register("timezone", func() any { return faker.Timezone() })
	r.Register("unix_time", func() any { return faker.UnixTime() })

	r.Register("credit_card_number", func() any { return faker.CCNumber() })
	r.Register("credit_card_provider", func() any { return faker.CCType() })
	r.Register("currency_code", func() any { return faker.Currency() })
	r.Register("amount_with_currency", func() any { return faker.AmountWithCurrency() })

	r.Register("uuid4", func() any { return uuid.NewString() })

	r.Register("company", pick([]string{
		"Acme Corp", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries",
		"Wayne Enterprises", "Wonka Industries", "Cyberdyne Systems", "Soylent",
		"Tyrell Corp", "Vandelay Industries", "Massive Dynamic", "Aperture Science",
	}))
	r.Register("job", pick([]string{
		"Software Engineer", "Accountant", "Nurse", "Teacher", "Electrician",
		"Data Analyst", "Product Manager", "Pharmacist", "Architect", "Chef",
		"Graphic Designer", "Sales Representative", "Mechanic", "Paralegal",
	}))
	r.Register("country", pick([]string{
		"United States", "Canada", "Mexico", "Brazil", "United Kingdom", "France",
		"Germany", "Spain", "Italy", "Netherlands", "Sweden", "Japan", "India",
		"Australia", "South Africa", "Egypt", "Turkey", "Argentina",
	}))
	return r
}
