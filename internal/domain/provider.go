package domain

import "strings"

type knownProvider struct {
	domain string
	name   string
}

// Ordered so partial matches are deterministic
var knownProviders = []knownProvider{
	{"tekjuice.co.uk", "Tek Juice"},
	{"gmail.com", "Gmail"},
	{"outlook.com", "Microsoft Outlook"},
	{"hotmail.com", "Hotmail"},
	{"live.com", "Microsoft Live"},
	{"yahoo.com", "Yahoo Mail"},
	{"yahoo.co.uk", "Yahoo Mail UK"},
	{"icloud.com", "iCloud Mail"},
	{"protonmail.com", "ProtonMail"},
}

// ProviderForEmail names the mailbox provider so the client can say where to look for the code
func ProviderForEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "Email Provider"
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))

	for _, p := range knownProviders {
		if p.domain == domain {
			return p.name
		}
	}

	for _, p := range knownProviders {
		label := p.domain[:strings.Index(p.domain, ".")]
		if strings.Contains(domain, label) {
			return p.name
		}
	}

	label := domain
	if dot := strings.Index(domain, "."); dot > 0 {
		label = domain[:dot]
	}
	if label == "" {
		return "Email Provider"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
