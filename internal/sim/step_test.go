package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

var _ = Describe("TSpan", func() {
	DescribeTable("Samples",
		func(ts sim.TSpan, want []float64) {
			Expect(ts.Samples()).To(Equal(want))
		},
		Entry("exact multiple", sim.TSpan{Max: 10, Dt: 5}, []float64{0, 5, 10}),
		Entry("appends max", sim.TSpan{Max: 10, Dt: 4}, []float64{0, 4, 8, 10}),
		Entry("single interval", sim.TSpan{Max: 3, Dt: 3}, []float64{0, 3}),
	)

	It("rejects non-positive and inverted spans", func() {
		Expect(sim.TSpan{Max: 0, Dt: 1}.Validate()).To(MatchError(dynamo.ErrConfig))
		Expect(sim.TSpan{Max: 1, Dt: -1}.Validate()).To(MatchError(dynamo.ErrConfig))
		Expect(sim.TSpan{Max: 1, Dt: 2}.Validate()).To(MatchError(dynamo.ErrConfig))
		Expect(sim.TSpan{Max: 2, Dt: 1}.Validate()).To(Succeed())
	})
})

var _ = Describe("Resolve", func() {
	It("imposes currents and scales C-rates by capacity", func() {
		c, err := sim.Resolve(sim.Current{Value: sim.Constant(0.5), Units: sim.CRate}, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Imposed()).To(BeTrue())
		Expect(c.Current(0)).To(Equal(2.0))

		c, err = sim.Resolve(sim.Current{Value: func(t float64) float64 { return t }, Units: sim.Amps}, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Current(3)).To(Equal(3.0))
	})

	It("closes voltage and power with a constraint row", func() {
		c, err := sim.Resolve(sim.Voltage{Value: sim.Constant(4.2)}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Imposed()).To(BeFalse())
		Expect(c.Residual(0, 4.0, 1)).To(BeNumerically("~", -0.2, 1e-12))

		c, err = sim.Resolve(sim.Power{Value: sim.Constant(-2)}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Residual(0, 4.0, -0.5)).To(BeNumerically("~", 0, 1e-12))
	})

	It("rejects incomplete conditions", func() {
		_, err := sim.Resolve(sim.Current{Value: sim.Constant(1), Units: "mA"}, 1)
		Expect(err).To(MatchError(dynamo.ErrConfig))
		_, err = sim.Resolve(sim.Power{}, 1)
		Expect(err).To(MatchError(ContainSubstring("power boundary condition has no target")))
		_, err = sim.Resolve(nil, 1)
		Expect(err).To(MatchError(dynamo.ErrConfig))
	})
})

var _ = Describe("Observables", func() {
	It("derives time units, C-rate and power", func() {
		o := sim.NewObservables(7200, -2, 3.5, 4)
		Expect(o.TimeMin).To(Equal(120.0))
		Expect(o.TimeH).To(Equal(2.0))
		Expect(o.CurrentC).To(Equal(-0.5))
		Expect(o.PowerW).To(Equal(-7.0))
		Expect(o.Values()).To(HaveLen(len(sim.ObservableNames)))

		for i, name := range sim.ObservableNames {
			v, err := o.Get(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(o.Values()[i]))
		}
	})

	It("validates limit names", func() {
		Expect(sim.Limit{Name: sim.CurrentC, Threshold: 0.05}.Validate()).To(Succeed())
		Expect(sim.Limit{Name: "soc"}.Validate()).To(MatchError(dynamo.ErrUnknownObservable))
		Expect(sim.Limit{Name: sim.VoltageV, Threshold: 3}.String()).To(Equal("voltage_V=3"))
	})
})

var _ = Describe("Step", func() {
	It("clones without sharing limits or observables", func() {
		s := newStep(amps(1), 10, 1, sim.Limit{Name: sim.VoltageV, Threshold: 4.2})
		s.T0 = 5
		s.Observables.VoltageV = 4

		c := s.Clone()
		c.Limits[0].Threshold = 3
		Expect(s.Limits[0].Threshold).To(Equal(4.2))
		Expect(c.T0).To(Equal(5.0))
		Expect(c.Observables).To(Equal(sim.Observables{}))
	})

	It("names statuses", func() {
		Expect(sim.TerminatedOnEvent.String()).To(Equal("TERMINATED_ON_EVENT"))
		Expect(sim.Completed.Done()).To(BeTrue())
		Expect(sim.Failed.Done()).To(BeFalse())
		Expect(sim.Integrating.Done()).To(BeFalse())
	})
})
