// Package github is a small rate-limited client for the GitHub REST API.
//
// It covers what the sample judges need: resolving a repository mask to
// repository ids, and reading issues by number. The client does no
// retries. It tracks X-RateLimit-Remaining and implements judge.Quota:
// OffQuota reports true once the remaining calls drop below a floor, so
// judges stop between units instead of burning the last calls.
package github
