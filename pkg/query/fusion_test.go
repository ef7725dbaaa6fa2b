package query_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarrylabs/quarry/pkg/query"
)

var _ = Describe("RRF", func() {
	It("should score a document in one list as 1/(k+rank)", func() {
		lists := [][]query.SearchResult{
			{{ID: "a"}},
		}

		fused := query.RRF(lists, 60, 10)
		Expect(fused).To(HaveLen(1))
		Expect(fused[0].Score).To(BeNumerically("~", 1.0/61.0, 1e-6))
	})

	It("should sum contributions across lists", func() {
		lists := [][]query.SearchResult{
			{{ID: "a"}, {ID: "b"}},
			{{ID: "b"}, {ID: "a"}},
		}

		fused := query.RRF(lists, 60, 10)
		Expect(fused).To(HaveLen(2))

		// Both documents: 1/61 + 1/62.
		expected := 1.0/61.0 + 1.0/62.0
		Expect(fused[0].Score).To(BeNumerically("~", expected, 1e-6))
		Expect(fused[1].Score).To(BeNumerically("~", expected, 1e-6))
	})

	It("should rank a document in both lists above one in a single list", func() {
		lists := [][]query.SearchResult{
			{{ID: "only-first"}, {ID: "both"}},
			{{ID: "both"}, {ID: "only-second"}},
		}

		fused := query.RRF(lists, 60, 10)
		Expect(fused[0].ID).To(Equal("both"))
	})

	It("should break score ties by document ID ascending", func() {
		lists := [][]query.SearchResult{
			{{ID: "zebra"}},
			{{ID: "apple"}},
		}

		fused := query.RRF(lists, 60, 10)
		Expect(fused[0].ID).To(Equal("apple"))
		Expect(fused[1].ID).To(Equal("zebra"))
	})

	It("should take metadata from the first occurrence", func() {
		lists := [][]query.SearchResult{
			{{ID: "a", Title: "First Title", MatchType: query.MatchSemantic}},
			{{ID: "a", Title: "Second Title", MatchType: query.MatchKeyword}},
		}

		fused := query.RRF(lists, 60, 10)
		Expect(fused[0].Title).To(Equal("First Title"))
		Expect(fused[0].MatchType).To(Equal(query.MatchSemantic))
	})

	It("should truncate to the limit", func() {
		lists := [][]query.SearchResult{
			{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		}

		fused := query.RRF(lists, 60, 2)
		Expect(fused).To(HaveLen(2))
		Expect(fused[0].ID).To(Equal("a"))
		Expect(fused[1].ID).To(Equal("b"))
	})

	It("should return nothing for empty input", func() {
		Expect(query.RRF(nil, 60, 10)).To(BeEmpty())
	})
})
