package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"sproutdir.app/sproutdir/internal/langdetect"
)

// Extraction carries the structured fields pulled out of a provider page's
// readable text. Pointer fields are nil when the page gave no signal.
type Extraction struct {
	ContactEmail     *string
	ContactPhone     *string
	Address          *string
	Categories       []string
	OperatingDays    []string
	PriceMin         *float64
	PriceMax         *float64
	PriceUnit        *string
	PriceDescription *string
	Language         *string
}

var (
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	addressPattern = regexp.MustCompile(`\d+\s+[A-Za-z .]+(?:Street|St|Avenue|Ave|Boulevard|Blvd|Road|Rd|Drive|Dr|Lane|Ln|Way|Court|Ct)\b`)

	freePattern        = regexp.MustCompile(`(?i)\bfree\b`)
	priceRangePattern  = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:-|to|–)+\s*\$?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:per|/|each)?\s*(month|session|class|week|term|semester|year)?`)
	priceSinglePattern = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:per|/|each)?\s*(month|session|class|week|term|semester|year)?`)
)

// categoryKeywords maps a catalog category tag to the words whose presence
// in page text implies it.
var categoryKeywords = []struct {
	Tag      string
	Keywords []string
}{
	{"swimming", []string{"swim", "aquatic", "water", "pool"}},
	{"art", []string{"art", "painting", "drawing", "sculpture", "creative"}},
	{"chess", []string{"chess"}},
	{"soccer", []string{"soccer", "football"}},
	{"music", []string{"music", "piano", "guitar", "violin", "instrument"}},
	{"dance", []string{"dance", "ballet", "hip hop"}},
	{"martial-arts", []string{"martial arts", "karate", "taekwondo", "judo", "kung fu"}},
	{"technology", []string{"coding", "programming", "computer", "robotics", "tech"}},
	{"academic", []string{"tutoring", "math", "science", "reading", "academic"}},
	{"science", []string{"science", "stem", "engineering", "physics", "chemistry"}},
	{"sports", []string{"sports", "athletic", "fitness"}},
}

const maxExtractedCategories = 3

var dayKeywords = []struct {
	Tag      string
	Keywords []string
}{
	{"mon", []string{"monday", "mondays"}},
	{"tue", []string{"tuesday", "tuesdays"}},
	{"wed", []string{"wednesday", "wednesdays"}},
	{"thu", []string{"thursday", "thursdays"}},
	{"fri", []string{"friday", "fridays"}},
	{"sat", []string{"saturday", "saturdays"}},
	{"sun", []string{"sunday", "sundays"}},
}

// Extract pulls contact, pricing, scheduling and category signals from
// cleaned page text.
func Extract(text string) Extraction {
	var out Extraction
	lower := strings.ToLower(text)

	out.ContactEmail = extractEmail(text)
	out.ContactPhone = extractPhone(text)
	out.Address = extractAddress(text)
	out.Categories = extractCategories(lower)
	out.OperatingDays = extractOperatingDays(lower)
	extractPricing(text, &out)

	if code := langdetect.DetectISO6391(text); code != "" {
		out.Language = &code
	}

	return out
}

func extractEmail(text string) *string {
	for _, email := range emailPattern.FindAllString(text, 8) {
		lowered := strings.ToLower(email)
		if strings.Contains(lowered, "noreply") ||
			strings.Contains(lowered, "example") ||
			strings.Contains(lowered, "test") {
			continue
		}
		return &email
	}
	return nil
}

func extractPhone(text string) *string {
	phone := phonePattern.FindString(text)
	if phone == "" {
		return nil
	}
	return &phone
}

func extractAddress(text string) *string {
	address := strings.TrimSpace(addressPattern.FindString(text))
	if address == "" {
		return nil
	}
	return &address
}

func extractCategories(lower string) []string {
	var categories []string
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				categories = append(categories, entry.Tag)
				break
			}
		}
		if len(categories) == maxExtractedCategories {
			break
		}
	}
	// Every submission needs at least one category tag.
	if len(categories) == 0 {
		categories = []string{"creative"}
	}
	return categories
}

func extractOperatingDays(lower string) []string {
	var days []string
	for _, entry := range dayKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				days = append(days, entry.Tag)
				break
			}
		}
	}
	return days
}

func extractPricing(text string, out *Extraction) {
	if freePattern.MatchString(text) {
		zero := 0.0
		description := "Free"
		out.PriceMin = &zero
		out.PriceMax = &zero
		out.PriceDescription = &description
		return
	}

	if match := priceRangePattern.FindStringSubmatch(text); match != nil {
		minPrice := parsePrice(match[1])
		maxPrice := parsePrice(match[2])
		out.PriceMin = &minPrice
		out.PriceMax = &maxPrice
		if match[3] != "" {
			unit := "per " + strings.ToLower(match[3])
			out.PriceUnit = &unit
		}
		return
	}

	if match := priceSinglePattern.FindStringSubmatch(text); match != nil {
		price := parsePrice(match[1])
		out.PriceMin = &price
		out.PriceMax = &price
		if match[2] != "" {
			unit := "per " + strings.ToLower(match[2])
			out.PriceUnit = &unit
		}
	}
}

func parsePrice(raw string) float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return value
}
