package graph

import "strconv"

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func trimInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
