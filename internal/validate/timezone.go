package validate

// SupportedTimezones is the whitelist offered to users, one zone per offset.
var SupportedTimezones = []string{
	"Pacific/Midway",
	"Pacific/Honolulu",
	"America/Anchorage",
	"America/Los_Angeles",
	"America/Denver",
	"America/Chicago",
	"America/New_York",
	"America/Caracas",
	"America/Sao_Paulo",
	"Atlantic/South_Georgia",
	"Atlantic/Azores",
	"Europe/London",
	"Europe/Berlin",
	"Africa/Cairo",
	"Europe/Moscow",
	"Asia/Dubai",
	"Asia/Karachi",
	"Asia/Kathmandu",
	"Asia/Kolkata",
	"Asia/Almaty",
	"Asia/Yangon",
	"Asia/Bangkok",
	"Asia/Shanghai",
	"Asia/Tokyo",
	"Australia/Adelaide",
	"Australia/Sydney",
	"Pacific/Guadalcanal",
	"Pacific/Auckland",
	"Pacific/Chatham",
}

var supportedTimezones = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SupportedTimezones))
	for _, tz := range SupportedTimezones {
		m[tz] = struct{}{}
	}
	return m
}()

// Timezone accepts "UTC" and the whitelisted IANA names.
func Timezone(tz string) error {
	if tz == "UTC" {
		return nil
	}
	if _, ok := supportedTimezones[tz]; !ok {
		return fieldErr("timezone", "unsupported timezone: %s", tz)
	}
	return nil
}
