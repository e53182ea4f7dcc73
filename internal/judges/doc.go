// Package judges holds the sample judges built on the judge runtime.
//
// Each judge is a Func registered under its name. The name is also what
// the judge tags its facts with (what=name) and the seen-marker it leaves
// on facts it consumed.
//
//   - issue-was-opened: walks the issues of every repository with a
//     cursor per repository and records each opened issue once.
//   - award-for-issue: turns each recorded issue into an award fact.
//   - quality-of-service: keeps one fact per day and fills in totals
//     over several runs.
package judges
