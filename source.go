package main

import (
	"fmt"

	git "gopkg.in/src-d/go-git.v4"
)

func describeSource(path string) (string, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("unable to open the git repository: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("unable to get the reference where HEAD is pointing to: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return "", fmt.Errorf("unable to get a worktree based on the given fs: %w", err)
	}

	s, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("unable to get the working tree status: %w", err)
	}

	desc := head.Hash().String()
	if head.Name().IsBranch() {
		desc = fmt.Sprintf("%s (%s)", desc, head.Name().Short())
	}
	if !s.IsClean() {
		desc += " dirty"
	}
	return desc, nil
}
