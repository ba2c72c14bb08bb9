package calculator

import (
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/shopspring/decimal"
)

// PriceInput collects the candidate prices of a lesson.
type PriceInput struct {
	LessonPrice decimal.NullDecimal
	TeacherRate decimal.NullDecimal
	CoursePrice decimal.NullDecimal
}

// PriceResolver returns a price and true when it can price the lesson.
type PriceResolver func(PriceInput) (decimal.Decimal, bool)

// PriceResolvers is evaluated in order and the first hit wins. The order is a financial rule:
// changing it silently changes what students are forecast to pay.
var PriceResolvers = []PriceResolver{
	lessonOwnPrice,
	teacherRateOverride,
	courseDefaultPrice,
}

func lessonOwnPrice(in PriceInput) (decimal.Decimal, bool) {
	return in.LessonPrice.Decimal, in.LessonPrice.Valid
}

func teacherRateOverride(in PriceInput) (decimal.Decimal, bool) {
	return in.TeacherRate.Decimal, in.TeacherRate.Valid
}

func courseDefaultPrice(in PriceInput) (decimal.Decimal, bool) {
	return in.CoursePrice.Decimal, in.CoursePrice.Valid
}

// ResolvePrice walks PriceResolvers and returns zero when none applies.
func ResolvePrice(in PriceInput) decimal.Decimal {
	for _, resolve := range PriceResolvers {
		if price, ok := resolve(in); ok {
			return price
		}
	}
	return decimal.Zero
}

// PriceInputFor builds the resolver input from a lesson with its enrollment course preloaded.
func PriceInputFor(l models.Lesson) PriceInput {
	in := PriceInput{
		LessonPrice: l.PricePerLesson,
		TeacherRate: l.TeacherRate,
	}
	if l.Enrollment != nil {
		in.CoursePrice = l.Enrollment.Course.PricePerLesson
	}
	return in
}
