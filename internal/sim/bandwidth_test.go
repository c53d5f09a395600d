package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

var _ = Describe("ProbeBandwidth", func() {
	It("measures the sparsity of the rest state", func() {
		r, err := sim.ProbeBandwidth(newFakeCell(), newStep(amps(0), 1, 1))
		Expect(err).NotTo(HaveOccurred())

		Expect(r.Model).To(Equal("fake"))
		Expect(r.Size).To(Equal(3))
		Expect(r.NonZeros).To(Equal(6))
		Expect([]int{r.ProbedL, r.ProbedU}).To(Equal([]int{1, 2}))
		Expect([]int{r.LBand, r.UBand}).To(Equal([]int{2, 2}))
		Expect(r.Sound()).To(BeTrue())
		Expect(r.Pattern.At(2, 0)).To(BeZero())
	})

	It("flags a declared bandwidth that is too narrow", func() {
		r, err := sim.ProbeBandwidth(narrowCell{newFakeCell()}, newStep(amps(0), 1, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Sound()).To(BeFalse())
	})

	It("rejects an invalid probe step", func() {
		_, err := sim.ProbeBandwidth(newFakeCell(), newStep(amps(0), 0, 1))
		Expect(err).To(MatchError(dynamo.ErrConfig))
	})
})

type narrowCell struct{ *fakeCell }

func (narrowCell) Bandwidth() (lband, uband int) { return 1, 1 }
