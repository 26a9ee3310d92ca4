// Package render draws a checkers position as a PNG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/checkers-relay/internal/checkers"
)

const (
	SquareSize   = 72
	sideMargin   = 28
	topMargin    = 40
	bottomMargin = 28
	pieceInset   = 6
)

// Options controls the overlays. LastFrom/LastTo highlight the previous move.
type Options struct {
	LastFrom *checkers.Position
	LastTo   *checkers.Position
	Header   string
}

// Size is the pixel size of every image RenderPNG produces.
func Size() image.Point {
	boardSize := SquareSize * checkers.BoardSize
	return image.Point{X: boardSize + sideMargin*2, Y: boardSize + topMargin + bottomMargin}
}

func RenderPNG(ctx context.Context, board checkers.Board, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	size := Size()
	origin := image.Point{X: sideMargin, Y: topMargin}
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin)
	drawHighlight(img, opts, origin)
	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin)
	if opts.Header != "" {
		drawHeader(img, opts.Header)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

var (
	backgroundColor = color.RGBA{48, 46, 43, 255}
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{118, 84, 58, 255}
	highlightFrom   = color.NRGBA{R: 246, G: 246, B: 105, A: 110}
	highlightTo     = color.NRGBA{R: 246, G: 246, B: 105, A: 170}
	coordinateColor = color.RGBA{220, 214, 200, 255}
)

// squareRect maps a board position to pixels; line 8 is at the top.
func squareRect(p checkers.Position, origin image.Point) image.Rectangle {
	x := origin.X + (p.Column-1)*SquareSize
	y := origin.Y + (checkers.BoardSize-p.Line)*SquareSize
	return image.Rect(x, y, x+SquareSize, y+SquareSize)
}

// isDark: a1 is dark, and every piece stands on a dark square.
func isDark(p checkers.Position) bool { return (p.Column+p.Line)%2 == 0 }

func drawSquares(img *image.RGBA, origin image.Point) {
	for line := 1; line <= checkers.BoardSize; line++ {
		for column := 1; column <= checkers.BoardSize; column++ {
			p := checkers.Position{Column: column, Line: line}
			clr := lightSquare
			if isDark(p) {
				clr = darkSquare
			}
			imagedraw.Draw(img, squareRect(p, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawHighlight(img *image.RGBA, opts Options, origin image.Point) {
	if opts.LastFrom != nil && checkers.IsAllowablePosition(*opts.LastFrom) {
		drawSquareOverlay(img, squareRect(*opts.LastFrom, origin), highlightFrom)
	}
	if opts.LastTo != nil && checkers.IsAllowablePosition(*opts.LastTo) {
		drawSquareOverlay(img, squareRect(*opts.LastTo, origin), highlightTo)
	}
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(img *image.RGBA, board checkers.Board, origin image.Point) error {
	size := SquareSize - pieceInset*2
	for _, c := range []checkers.Color{checkers.White, checkers.Black} {
		for _, p := range board.Pieces(c) {
			pieceImg, err := renderPieceImage(c, p.Crowned, size)
			if err != nil {
				return err
			}
			rect := squareRect(p.Position, origin).Inset(pieceInset)
			imagedraw.Draw(img, rect, pieceImg, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawCoordinates(img *image.RGBA, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + checkers.BoardSize*SquareSize

	for i := 1; i <= checkers.BoardSize; i++ {
		rankCenter := origin.Y + (checkers.BoardSize-i)*SquareSize + SquareSize/2
		drawCenteredText(drawer, strconv.Itoa(i), origin.X-sideMargin/2, rankCenter+ascent/2)

		fileCenter := origin.X + (i-1)*SquareSize + SquareSize/2
		drawCenteredText(drawer, string(rune('a'+i-1)), fileCenter, boardEnd+ascent+4)
	}
}

func drawHeader(img *image.RGBA, text string) {
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateColor), Face: basicfont.Face7x13}
	drawCenteredText(drawer, text, img.Bounds().Dx()/2, topMargin/2+5)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Ceil()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
