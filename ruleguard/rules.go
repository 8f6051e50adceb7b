// Package gorules holds the ruleguard checks run by golangci-lint (gocritic
// ruleguard checker) over the codeassist tree.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// smells flags control flow that reads better merged or extracted.
func smells(m dsl.Matcher) {
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic`)
}

// logging keeps output on the structured logger outside cmd/.
func logging(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`, `log.Printf($*_)`, `log.Println($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`use the injected *slog.Logger instead of printing`)
}

// config keeps environment access in the config and provider packages.
func config(m dsl.Matcher) {
	m.Match(`os.Getenv($_)`, `os.LookupEnv($_)`).
		Where(!m.File().PkgPath.Matches(`internal/infra/config|internal/domain/provider`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report(`read environment variables through internal/infra/config`)
}

// outbound requires a context on provider calls so request cancellation reaches them.
func outbound(m dsl.Matcher) {
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.NewRequest($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`use http.NewRequestWithContext so cancellation reaches the upstream call`)
}

// sentinels compares errors with errors.Is so wrapped provider errors still match.
func sentinels(m dsl.Matcher) {
	m.Match(`$err == $target`, `$err != $target`).
		Where(m["err"].Type.Implements(`error`) && m["target"].Text.Matches(`^(\w+\.)?Err[A-Z]`)).
		Report(`compare errors with errors.Is($err, $target)`)
}
