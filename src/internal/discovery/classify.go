// FILE: src/internal/discovery/classify.go
package discovery

import (
	"path/filepath"
	"strings"

	"logpulse/src/internal/core"
)

// classifyRule matches keywords against the lowercased path (or base
// name only, when baseOnly is set). Rules are ordered; the first match
// wins.
type classifyRule struct {
	keywords    []string
	baseOnly    bool
	category    string
	subcategory func(path string) string
}

var classifyRules = []classifyRule{
	{
		keywords: []string{"auth", "secure", "ufw", "audit", "fail2ban", "faillog", "btmp", "apparmor", "firewall"},
		baseOnly: true,
		category: core.CategorySecurity,
		subcategory: func(p string) string {
			switch {
			case strings.Contains(p, "ufw") || strings.Contains(p, "firewall"):
				return "Firewall"
			case strings.Contains(p, "fail") || strings.Contains(p, "btmp"):
				return "Failed Authentication"
			case strings.Contains(p, "audit") || strings.Contains(p, "apparmor"):
				return "Policy Violations"
			default:
				return "Login Attempts"
			}
		},
	},
	{
		keywords: []string{"nginx", "apache", "httpd", "caddy", "lighttpd"},
		category: core.CategoryWebServer,
		subcategory: func(p string) string {
			if strings.Contains(p, "error") {
				return "Web Server Errors"
			}
			return "Web Server"
		},
	},
	{
		keywords: []string{"mysql", "mariadb", "postgres", "redis", "mongo"},
		category: core.CategoryDatabase,
		subcategory: func(p string) string {
			if strings.Contains(p, "error") {
				return "Database Errors"
			}
			return "Database"
		},
	},
	{
		keywords:    []string{"kern", "boot", "dmesg", "syslog", "journal"},
		baseOnly:    true,
		category:    core.CategoryKernel,
		subcategory: func(string) string { return "System" },
	},
	{
		keywords:    []string{"dpkg", "apt", "yum", "dnf", "pacman"},
		baseOnly:    true,
		category:    core.CategoryPackageMgmt,
		subcategory: func(string) string { return "Configuration Changes" },
	},
	{
		keywords:    []string{"docker", "containerd", "snap", "cron", "cups"},
		category:    core.CategoryApplication,
		subcategory: func(string) string { return "Application" },
	},
}

// Classify assigns a category/subcategory to a path by ordered keyword
// match over its segments. Pure and deterministic; always returns a
// value, falling back to the Other category.
func Classify(path string) core.Classification {
	lower := strings.ToLower(path)
	base := strings.ToLower(filepath.Base(path))

	for _, rule := range classifyRules {
		haystack := lower
		if rule.baseOnly {
			haystack = base
		}
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return core.Classification{
					Category:    rule.category,
					Subcategory: rule.subcategory(lower),
				}
			}
		}
	}

	return core.Classification{Category: core.CategoryOther, Subcategory: "Other"}
}
