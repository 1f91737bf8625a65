package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/spist/campus/core/course"
)

type seedFile struct {
	Departments []struct {
		Code        string `yaml:"code"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"departments"`

	Courses []struct {
		Code          string   `yaml:"code"`
		Title         string   `yaml:"title"`
		Description   string   `yaml:"description"`
		Units         int      `yaml:"units"`
		Department    string   `yaml:"department"`
		CourseType    string   `yaml:"course_type"`
		Prerequisites []string `yaml:"prerequisites"` // course codes seeded earlier
	} `yaml:"courses"`

	AcademicYears []struct {
		YearStart int  `yaml:"year_start"`
		IsCurrent bool `yaml:"is_current"`
		Semesters []struct {
			Term      string `yaml:"term"`
			StartDate string `yaml:"start_date"`
			EndDate   string `yaml:"end_date"`
			IsCurrent bool   `yaml:"is_current"`
		} `yaml:"semesters"`
	} `yaml:"academic_years"`
}

type seedStats struct {
	departments, courses, years, semesters int
}

func (s seedStats) String() string {
	return fmt.Sprintf(
		"%d department(s), %d course(s), %d academic year(s), %d semester(s) created",
		s.departments, s.courses, s.years, s.semesters,
	)
}

// seed loads the catalog from a YAML file. Records that already exist are left untouched.
func (cli *commandLine) seed(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var data seedFile
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "parsing seed file")
	}

	var stats seedStats

	// departments
	depIDs := make(map[string]string)
	deps, err := cli.courseSvc.ListDepartments(ctx)
	if err != nil {
		return err
	}
	for _, d := range deps {
		depIDs[d.Code] = d.ID
	}
	for _, d := range data.Departments {
		in := course.DepartmentInput{Code: d.Code, Name: d.Name, Description: d.Description}
		if err = in.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "department %q", d.Code)
		}
		if _, ok := depIDs[in.Code]; ok {
			continue
		}
		dep, err := cli.courseSvc.CreateDepartment(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "creating department %q", in.Code)
		}
		depIDs[dep.Code] = dep.ID
		stats.departments++
	}

	// courses
	courseIDs := make(map[string]string)
	courses, err := cli.courseSvc.ListCourses(ctx, course.CourseFilter{})
	if err != nil {
		return err
	}
	for _, c := range courses {
		courseIDs[c.Code] = c.ID
	}
	for _, c := range data.Courses {
		in := course.CourseInput{
			Code:        c.Code,
			Title:       c.Title,
			Description: c.Description,
			Units:       c.Units,
			CourseType:  c.CourseType,
		}
		if c.Department != "" {
			id, ok := depIDs[strings.ToUpper(c.Department)]
			if !ok {
				return fmt.Errorf("course %q: unknown department %q", c.Code, c.Department)
			}
			in.DepartmentID = id
		}
		for _, code := range c.Prerequisites {
			id, ok := courseIDs[strings.ToUpper(code)]
			if !ok {
				return fmt.Errorf("course %q: unknown prerequisite %q", c.Code, code)
			}
			in.Prerequisites = append(in.Prerequisites, id)
		}
		if err = in.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "course %q", c.Code)
		}
		if _, ok := courseIDs[in.Code]; ok {
			continue
		}
		crs, err := cli.courseSvc.CreateCourse(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "creating course %q", in.Code)
		}
		courseIDs[crs.Code] = crs.ID
		stats.courses++
	}

	// academic years & semesters
	yearIDs := make(map[int]string)
	years, err := cli.courseSvc.ListAcademicYears(ctx)
	if err != nil {
		return err
	}
	for _, y := range years {
		yearIDs[y.YearStart] = y.ID
	}
	for _, y := range data.AcademicYears {
		yearID, ok := yearIDs[y.YearStart]
		if !ok {
			in := course.AcademicYearInput{YearStart: y.YearStart, IsCurrent: y.IsCurrent}
			if err = in.Validate(cli.validate); err != nil {
				return errors.Wrapf(err, "academic year %d", y.YearStart)
			}
			year, err := cli.courseSvc.CreateAcademicYear(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "creating academic year %d", y.YearStart)
			}
			yearID = year.ID
			yearIDs[y.YearStart] = yearID
			stats.years++
		}

		sems, err := cli.courseSvc.ListSemesters(ctx, yearID)
		if err != nil {
			return err
		}
		terms := make(map[string]bool, len(sems))
		for _, s := range sems {
			terms[s.Term] = true
		}
		for _, s := range y.Semesters {
			if terms[s.Term] {
				continue
			}
			in := course.SemesterInput{
				AcademicYearID: yearID,
				Term:           s.Term,
				StartDate:      s.StartDate,
				EndDate:        s.EndDate,
				IsCurrent:      s.IsCurrent,
			}
			if err = in.Validate(cli.validate); err != nil {
				return errors.Wrapf(err, "%d %s semester", y.YearStart, s.Term)
			}
			if _, err = cli.courseSvc.CreateSemester(ctx, in); err != nil {
				return errors.Wrapf(err, "creating %d %s semester", y.YearStart, s.Term)
			}
			terms[s.Term] = true
			stats.semesters++
		}
	}

	fmt.Fprintln(cli.out, stats)
	return nil
}
