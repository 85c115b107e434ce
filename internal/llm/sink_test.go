package llm

import "errors"

type recordingSink struct {
	fragments []string
	done      []CompletionResult
	errs      []error
	failAfter int
}

func (s *recordingSink) OnFragment(text string) error {
	s.fragments = append(s.fragments, text)
	if s.failAfter > 0 && len(s.fragments) >= s.failAfter {
		return errClientGone
	}
	return nil
}

func (s *recordingSink) OnDone(result CompletionResult) { s.done = append(s.done, result) }

func (s *recordingSink) OnError(err error) { s.errs = append(s.errs, err) }

func (s *recordingSink) terminals() int { return len(s.done) + len(s.errs) }

var errClientGone = errors.New("client gone")
