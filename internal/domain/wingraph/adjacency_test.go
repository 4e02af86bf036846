package wingraph_test

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/winchain/internal/domain/wingraph"
)

func TestSnapshotRoundTrip(t *testing.T) {
	Convey("Given a built snapshot", t, func() {
		s := build(randomGames(rand.New(rand.NewPCG(21, 4)), 25, 500)...)
		s.Meta.Generation = "gen-1"

		Convey("When it is encoded and decoded", func() {
			wins, net, err := wingraph.EncodeSnapshot(s)
			So(err, ShouldBeNil)

			got, err := wingraph.DecodeSnapshot(wins, net, s.Meta)
			So(err, ShouldBeNil)

			Convey("Then nodes, edges and weights should be identical", func() {
				So(edges(got.Wins), ShouldResemble, edges(s.Wins))
				So(edges(got.Net), ShouldResemble, edges(s.Net))

				wantNodes, _ := s.Wins.Nodes()
				gotNodes, _ := got.Wins.Nodes()
				So(gotNodes, ShouldResemble, wantNodes)
				So(got.Meta.Generation, ShouldEqual, "gen-1")
				So(got.Meta.NetEdges, ShouldEqual, s.Net.Size())
			})

			Convey("Then chains should match the source snapshot", func() {
				nodes, _ := s.Wins.Nodes()
				for _, a := range nodes[:5] {
					for _, b := range nodes {
						for _, useNet := range []bool{false, true} {
							_, f1, _ := s.FindChain(a, b, useNet)
							c2, f2, _ := got.FindChain(a, b, useNet)
							So(f2, ShouldEqual, f1)
							if f1 {
								want, _ := s.Select(useNet).PathCost(mustChain(s, a, b, useNet))
								have, _ := got.Select(useNet).PathCost(c2)
								So(have, ShouldEqual, want)
							}
						}
					}
				}
			})
		})
	})

	Convey("Given a graph with isolated nodes", t, func() {
		s := build(game(1, 2, false))

		Convey("Then encoding should keep every node as a key", func() {
			data, err := wingraph.Encode(s.Wins)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"1":[],"2":[]}`)
		})

		Convey("Then the net graph should encode weights", func() {
			s := build(game(1, 2, true), game(1, 2, true), game(1, 3, true))
			data, err := wingraph.Encode(s.Net)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"1":[{"id":2,"w":2},{"id":3,"w":1}],"2":[],"3":[]}`)
		})
	})
}

func mustChain(s *wingraph.Snapshot, a, b int64, useNet bool) []int64 {
	c, _, err := s.FindChain(a, b, useNet)
	So(err, ShouldBeNil)
	return c
}

func TestDecodeCorrupt(t *testing.T) {
	Convey("Given malformed adjacency documents", t, func() {
		cases := []struct {
			kind wingraph.Kind
			data string
		}{
			{wingraph.KindWins, `not json`},
			{wingraph.KindWins, `null`},
			{wingraph.KindWins, `{"abc":[]}`},
			{wingraph.KindWins, `{"1.5":[]}`},
			{wingraph.KindWins, `{"1":[{"id":2}]}`},
			{wingraph.KindWins, `{"1":[{"id":"2"}],"2":[]}`},
			{wingraph.KindWins, `{"1":[{"id":2},{"id":2}],"2":[]}`},
			{wingraph.KindWins, `{"1":[],"01":[]}`},
			{wingraph.KindNet, `{"1":[{"id":2}],"2":[]}`},
			{wingraph.KindNet, `{"1":[{"id":2,"w":-3}],"2":[]}`},
		}

		Convey("Then each should be reported as corrupt", func() {
			for _, c := range cases {
				g, err := wingraph.Decode(c.kind, []byte(c.data))
				So(g, ShouldBeNil)
				So(errors.Is(err, wingraph.ErrSnapshotCorrupt), ShouldBeTrue)
			}
		})

		Convey("Then an unknown kind should be rejected before parsing", func() {
			_, err := wingraph.Decode("losses", []byte(`{}`))
			So(errors.Is(err, wingraph.ErrUnknownKind), ShouldBeTrue)
		})
	})

	Convey("Given graphs with different node sets", t, func() {
		wins, _ := json.Marshal(map[string][]any{"1": {}, "2": {}})
		net, _ := json.Marshal(map[string][]any{"1": {}})

		_, err := wingraph.DecodeSnapshot(wins, net, wingraph.Meta{})

		So(errors.Is(err, wingraph.ErrSnapshotCorrupt), ShouldBeTrue)
	})

	Convey("Given an empty but valid document", t, func() {
		g, err := wingraph.Decode(wingraph.KindNet, []byte(`{}`))

		So(err, ShouldBeNil)
		So(g.Order(), ShouldEqual, 0)
	})
}
