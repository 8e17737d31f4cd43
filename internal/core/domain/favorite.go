package domain

// FavoriteMap maps an identity email to the set of favored product IDs. Every
// operation touches only one identity's subset; the rest of the map is
// preserved verbatim. An identity whose set becomes empty has its entry
// deleted rather than left as an empty slice.
type FavoriteMap map[string][]int

// IDs returns the favorite product IDs for the given email, nil when none.
func (m FavoriteMap) IDs(email string) []int {
	return m[NormalizeEmail(email)]
}

// Has reports whether productID is in the given email's favorite set.
func (m FavoriteMap) Has(email string, productID int) bool {
	for _, id := range m.IDs(email) {
		if id == productID {
			return true
		}
	}
	return false
}
