package europepmc

// searchResponse is the subset of the rest/search JSON payload in use
type searchResponse struct {
	HitCount       int        `json:"hitCount"`
	NextCursorMark string     `json:"nextCursorMark"`
	ResultList     resultList `json:"resultList"`
}

type resultList struct {
	Result []article `json:"result"`
}

type article struct {
	PMCID        string `json:"pmcid"`
	Title        string `json:"title"`
	AbstractText string `json:"abstractText"`
}
