package logic

// TeamSizes returns the target member count of each of k teams for n players.
// Sizes differ by at most one and the first n%k teams take the extra member.
func TeamSizes(n, k int) ([]int, error) {
	if k < 1 {
		return nil, ErrInvalidTeamCount
	}
	if n < k {
		return nil, &CapacityError{Players: n, Teams: k}
	}
	base, rem := n/k, n%k
	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes, nil
}
