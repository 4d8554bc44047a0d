package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)
	_ = validate.RegisterValidation("safe_url", validateSafeURL)
	_ = validate.RegisterValidation("proxy_url", validateProxyURL)
	_ = validate.RegisterValidation("share_text", validateShareText)
}

// Struct validates a request DTO and reports the first failing field by its JSON name.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Errorf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%s: failed %s", fe.Field(), fe.Tag())
}

var linkPattern = regexp.MustCompile(`https?://[^\s，。！？、；："'<>()（）【】]+`)

// ExtractURLs returns the links embedded in free-form share text, in order.
func ExtractURLs(text string) []string {
	found := linkPattern.FindAllString(text, -1)
	out := found[:0]
	for _, u := range found {
		u = strings.TrimRight(u, ".,;!?")
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// SafeURL reports whether u is an http(s) URL that does not point at a local or private host.
func SafeURL(u string) bool {
	return validate.Var(u, "required,safe_url") == nil
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func validateSafeURL(fl validator.FieldLevel) bool {
	urlStr := fl.Field().String()

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	host := u.Hostname()

	forbiddenHosts := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"169.254.169.254",
	}

	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return false
		}
	}

	return true
}

// validateShareText accepts free text containing at least one public link.
func validateShareText(fl validator.FieldLevel) bool {
	for _, u := range ExtractURLs(fl.Field().String()) {
		if SafeURL(u) {
			return true
		}
	}
	return false
}

func validateProxyURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
		return u.Port() != "" || u.Scheme == "http" || u.Scheme == "https"
	}
	return false
}
