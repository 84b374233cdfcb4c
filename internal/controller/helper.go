package controller

import (
	"fmt"
	"net/http"
)

const (
	headerPrefix = "St-"
)

func (c controller) mustHeader(r *http.Request, key string) (string, error) {
	value := r.Header.Get(headerPrefix + key)
	if value == "" {
		return "", fmt.Errorf("%s%s header was not provided", headerPrefix, key)
	}

	return value, nil
}
