package session

import (
	"encoding/json"

	"github.com/mohammad-safakhou/searchbrief/models"
)

func jsonSearches(ss ...models.Search) ([]byte, error) { return json.Marshal(ss) }
